package run

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MonlamAI/tmcat/internal/config"
	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/gh"
	"github.com/MonlamAI/tmcat/internal/infra/cache"
	"github.com/MonlamAI/tmcat/internal/infra/httpx"
	"github.com/MonlamAI/tmcat/internal/pick"
	"github.com/MonlamAI/tmcat/internal/textdec"
	"github.com/MonlamAI/tmcat/internal/title"
)

// fakeOrg 模拟一个组织：search API + 每个仓库的 contents/raw。
// files[repo] 为 nil 表示该仓库对任何请求返回 500（仓库级失败）。
func fakeOrg(t *testing.T, files map[string]map[string]string) *gh.Client {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/repositories":
			items := make([]map[string]any, 0, len(files))
			id := int64(1)
			for name := range files {
				items = append(items, map[string]any{
					"id": id, "name": name,
					"full_name": "MonlamAI/" + name,
					"html_url":  "https://github.com/MonlamAI/" + name,
				})
				id++
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"total_count": len(items), "items": items})

		case strings.HasPrefix(r.URL.Path, "/repos/"):
			parts := strings.Split(r.URL.Path, "/")
			repo := parts[3]
			repoFiles, ok := files[repo]
			if !ok {
				http.NotFound(w, r)
				return
			}
			if repoFiles == nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			entries := make([]domain.FileEntry, 0, len(repoFiles))
			for name := range repoFiles {
				entries = append(entries, domain.FileEntry{
					Name: name, Path: name, Type: "file",
					DownloadURL: srv.URL + "/raw/" + repo + "/" + name,
				})
			}
			_ = json.NewEncoder(w).Encode(entries)

		case strings.HasPrefix(r.URL.Path, "/raw/"):
			parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/raw/"), "/", 2)
			body, ok := files[parts[0]][parts[1]]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(body))

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := gh.NewClient(httpx.NewAPIClient(""), httpx.NewRawClient(""), "MonlamAI")
	c.BaseURL = srv.URL
	return c
}

func testConfig(t *testing.T) config.EffectiveConfig {
	t.Helper()
	root := t.TempDir()
	return config.EffectiveConfig{
		Path:         root,
		Org:          "MonlamAI",
		Concurrency:  2,
		BatchSize:    2,
		OutputCSV:    filepath.Join(root, "catalog.csv"),
		LanguageTags: []string{domain.LangBo, domain.LangEn},
		Extensions:   pick.DefaultExtensions(),
		Encodings:    textdec.DefaultEncodings(),
		Markers:      title.DefaultMarkers(),
	}
}

func readCSVRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开 CSV 失败：%v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("解析 CSV 失败：%v", err)
	}
	return recs
}

func TestExecute_EndToEnd(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "མདོ། ཀ\n", "en.txt": "Title One\n"},
		"TMtoh2": {"bo.txt": "ཁ\n"},
		"TMbad3": nil, // 仓库级失败
	})
	eff := testConfig(t)

	rr, cov := Execute(context.Background(), eff, client, nil, nil)

	if rr.Summary.Processed != 2 || rr.Summary.Failed != 1 || rr.Summary.Skipped != 0 {
		t.Fatalf("summary 不对：%+v", rr.Summary)
	}
	if rr.Org != "MonlamAI" || rr.OutputCSV != eff.OutputCSV {
		t.Fatalf("report 元数据不对：%+v", rr)
	}

	// items 已按仓库名排序。
	if rr.Items[0].Repo != "TMbad3" || rr.Items[0].Status != domain.StatusFailed {
		t.Fatalf("失败仓库条目不对：%+v", rr.Items[0])
	}
	if rr.Items[0].ErrorCode != domain.ErrCodeFetchFailed {
		t.Fatalf("失败仓库 error_code 不对：%+v", rr.Items[0])
	}

	recs := readCSVRows(t, eff.OutputCSV)
	if len(recs) != 3 {
		t.Fatalf("CSV 应为 1 表头 + 2 行：%d", len(recs))
	}
	if cov.Total != 2 || cov.Both != 1 || cov.OnlyBo != 1 {
		t.Fatalf("覆盖统计不对：%+v", cov)
	}

	// 进度已落盘：成功进 processed，失败进 failed。
	p, err := cache.New(eff.Path).ReadProgress()
	if err != nil {
		t.Fatalf("读进度失败：%v", err)
	}
	if len(p.Processed) != 2 {
		t.Fatalf("processed 不对：%+v", p.Processed)
	}
	if _, ok := p.Failed["TMbad3"]; !ok {
		t.Fatalf("失败仓库必须进 failed 集合：%+v", p.Failed)
	}

	// 检查点是完整快照。
	if _, err := os.Stat(filepath.Join(eff.Path, "checkpoint_0001.csv")); err != nil {
		t.Fatalf("检查点未写出：%v", err)
	}
}

func TestExecute_ResumeSkipsProcessed(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "ཀ\n"},
		"TMtoh2": {"bo.txt": "ཁ\n"},
	})
	eff := testConfig(t)

	store := cache.New(eff.Path)
	if err := store.WriteProgress(cache.Progress{
		Processed: []string{"TMtoh1"},
		Failed:    map[string]string{},
	}); err != nil {
		t.Fatal(err)
	}

	rr, _ := Execute(context.Background(), eff, client, nil, nil)
	if rr.Summary.Skipped != 1 || rr.Summary.Processed != 1 {
		t.Fatalf("断点续跑应跳过已处理仓库：%+v", rr.Summary)
	}
	for _, it := range rr.Items {
		if it.Repo == "TMtoh1" && it.Status != domain.StatusSkipped {
			t.Fatalf("TMtoh1 应为 skipped：%+v", it)
		}
	}
}

func TestExecute_RetryFailed(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "ཀ\n"},
	})
	eff := testConfig(t)

	store := cache.New(eff.Path)
	if err := store.WriteProgress(cache.Progress{
		Failed: map[string]string{"TMtoh1": "boom"},
	}); err != nil {
		t.Fatal(err)
	}

	// 默认：失败集合跳过。
	rr, _ := Execute(context.Background(), eff, client, nil, nil)
	if rr.Summary.Skipped != 1 || rr.Summary.Processed != 0 {
		t.Fatalf("默认应跳过失败仓库：%+v", rr.Summary)
	}

	// --retry-failed：重新处理并从失败集合清除。
	eff.RetryFailed = true
	rr, _ = Execute(context.Background(), eff, client, nil, nil)
	if rr.Summary.Processed != 1 {
		t.Fatalf("retry-failed 应重新处理：%+v", rr.Summary)
	}
	p, _ := store.ReadProgress()
	if _, ok := p.Failed["TMtoh1"]; ok {
		t.Fatalf("成功后应从 failed 集合清除：%+v", p.Failed)
	}
}

func TestExecute_Limit(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "ཀ\n"},
		"TMtoh2": {"bo.txt": "ཁ\n"},
		"TMtoh3": {"bo.txt": "ག\n"},
	})
	eff := testConfig(t)
	eff.Limit = 1
	eff.Concurrency = 1

	rr, _ := Execute(context.Background(), eff, client, nil, nil)
	if rr.Summary.Processed != 1 {
		t.Fatalf("--limit 1 应只处理一个仓库：%+v", rr.Summary)
	}
}

func TestExecute_DiscoveryUsesCache(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "ཀ\n"},
	})
	eff := testConfig(t)

	store := cache.New(eff.Path)
	if err := store.WriteRepoList("MonlamAI", []domain.RepoRef{
		{Name: "TMcached", FullName: "MonlamAI/TMcached", HTMLURL: "u", ID: 7},
	}); err != nil {
		t.Fatal(err)
	}

	rr, _ := Execute(context.Background(), eff, client, nil, nil)
	// 缓存里只有 TMcached（contents 404 → 双缺失行），不应走搜索。
	if len(rr.Items) != 1 || rr.Items[0].Repo != "TMcached" {
		t.Fatalf("应使用发现缓存：%+v", rr.Items)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	phases []string
	items  int
}

func (o *recordingObserver) OnStart(config.EffectiveConfig) {}
func (o *recordingObserver) OnPhaseDone(name string, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}
func (o *recordingObserver) OnItemDone(_, _ int, _ string, _ domain.ItemResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items++
}
func (o *recordingObserver) OnProgress(_, _, _, _, _, _ int, _ []string, _ time.Duration) {}

func TestExecute_ObserverEvents(t *testing.T) {
	client := fakeOrg(t, map[string]map[string]string{
		"TMtoh1": {"bo.txt": "ཀ\n"},
		"TMtoh2": {"bo.txt": "ཁ\n"},
	})
	eff := testConfig(t)

	obs := &recordingObserver{}
	Execute(context.Background(), eff, client, nil, obs)

	if obs.items != 2 {
		t.Fatalf("OnItemDone 次数不对：%d", obs.items)
	}
	want := []string{"discover", "exec", "summary"}
	if len(obs.phases) != 3 {
		t.Fatalf("阶段事件不对：%v", obs.phases)
	}
	for i, p := range want {
		if obs.phases[i] != p {
			t.Fatalf("阶段顺序不对：%v", obs.phases)
		}
	}
}
