package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/gh"
	"github.com/MonlamAI/tmcat/internal/infra/httpx"
	"github.com/MonlamAI/tmcat/internal/pick"
	"github.com/MonlamAI/tmcat/internal/textdec"
	"github.com/MonlamAI/tmcat/internal/title"
)

// fakeRepo 在一个 httptest server 上模拟 contents API + raw 下载。
func fakeRepo(t *testing.T, files map[string]string) *Pipeline {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/raw/") {
			name := strings.TrimPrefix(r.URL.Path, "/raw/")
			body, ok := files[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(body))
			return
		}
		if strings.Contains(r.URL.Path, "/contents/") {
			entries := make([]domain.FileEntry, 0, len(files))
			for name := range files {
				entries = append(entries, domain.FileEntry{
					Name: name, Path: name, Type: "file",
					DownloadURL: srv.URL + "/raw/" + name,
				})
			}
			_ = json.NewEncoder(w).Encode(entries)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	client := gh.NewClient(httpx.NewAPIClient(""), httpx.NewRawClient(""), "MonlamAI")
	client.BaseURL = srv.URL

	return &Pipeline{
		Client:       client,
		LanguageTags: []string{domain.LangBo, domain.LangEn},
		Extensions:   pick.DefaultExtensions(),
		Encodings:    textdec.DefaultEncodings(),
		Markers:      title.DefaultMarkers(),
	}
}

func TestProcessRepo_BothLanguages(t *testing.T) {
	p := fakeRepo(t, map[string]string{
		"bo.txt":    "བོད་སྐད་དུ། འཕགས་པ་ཤེས་རབ\n\nལིནེ\n",
		"en.txt":    "The Noble Perfection of Wisdom\n\nbody\n",
		"README.md": "not a candidate",
	})

	row, err := p.ProcessRepo(context.Background(), domain.RepoRef{Name: "TMtoh1", HTMLURL: "u"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if row.BoFilePath != "bo.txt" || row.EnFilePath != "en.txt" {
		t.Fatalf("文件选择不对：%+v", row)
	}
	if row.BoTitle != "བོད་སྐད་དུ། འཕགས་པ་ཤེས་རབ" {
		t.Fatalf("bo 标题应命中标记行：%q", row.BoTitle)
	}
	if row.EnTitle != "The Noble Perfection of Wisdom" {
		t.Fatalf("en 标题应取首个非空行：%q", row.EnTitle)
	}
	if row.BoLinesTotal != 4 || row.BoLinesNonEmpty != 2 {
		t.Fatalf("bo 行数不对：%+v", row)
	}
	if row.Notes != "" {
		t.Fatalf("干净仓库 notes 应为空：%q", row.Notes)
	}
}

func TestProcessRepo_MissingEnAndMultipleBo(t *testing.T) {
	p := fakeRepo(t, map[string]string{
		"bo.txt":     "མདོ། ཏིཏླེ\n",
		"bo_alt.txt": "alt\n",
	})

	row, err := p.ProcessRepo(context.Background(), domain.RepoRef{Name: "TMtoh2", HTMLURL: "u"})
	if err != nil {
		t.Fatalf("降级场景不应返回仓库级错误：%v", err)
	}
	if row.EnFilePath != "" {
		t.Fatalf("en 应缺失：%+v", row)
	}
	if !strings.Contains(row.Notes, "missing en file") ||
		!strings.Contains(row.Notes, "multiple bo candidates: bo_alt.txt") {
		t.Fatalf("notes 不完整：%q", row.Notes)
	}
}

func TestProcessRepo_EmptyRepo(t *testing.T) {
	p := fakeRepo(t, map[string]string{})

	row, err := p.ProcessRepo(context.Background(), domain.RepoRef{Name: "TMempty", HTMLURL: "u"})
	if err != nil {
		t.Fatalf("空仓库不应失败：%v", err)
	}
	if row.Notes != "missing bo file; missing en file" {
		t.Fatalf("notes 不对：%q", row.Notes)
	}
}

func TestProcessRepo_Latin1FallbackNoted(t *testing.T) {
	p := fakeRepo(t, map[string]string{
		"bo.txt": "title line\n",
		// 非法 UTF-8 且奇数字节（utf-16 同样失败），最终落到 latin-1。
		"en.txt": string([]byte{0xE9, 0x74, 0x0A}),
	})

	row, err := p.ProcessRepo(context.Background(), domain.RepoRef{Name: "TMtoh3", HTMLURL: "u"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.Contains(row.Notes, "en file decoded with fallback encoding latin-1") {
		t.Fatalf("解码回退必须进 notes：%q", row.Notes)
	}
	if row.EnTitle == "" {
		t.Fatalf("latin-1 回退后仍应提取标题")
	}
}
