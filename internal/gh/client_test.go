package gh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MonlamAI/tmcat/internal/infra/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(httpx.NewAPIClient("tok"), httpx.NewRawClient("tok"), "MonlamAI")
	c.BaseURL = srv.URL
	return c, srv
}

func TestListRootContents_FilterFilesOnly(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/MonlamAI/TMtoh1/contents/" {
			t.Errorf("路径不对：%s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"bo.txt","path":"bo.txt","type":"file","download_url":"http://x/bo.txt"},
			{"name":"data","path":"data","type":"dir","download_url":null},
			{"name":"en.txt","path":"en.txt","type":"file","download_url":"http://x/en.txt"}
		]`))
	}))

	files, err := c.ListRootContents(context.Background(), "TMtoh1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应只保留 type=file 的条目：%+v", files)
	}
	if files[0].Path != "bo.txt" || files[1].Path != "en.txt" {
		t.Fatalf("条目不对：%+v", files)
	}
}

func TestListRootContents_404IsEmptyNotError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	files, err := c.ListRootContents(context.Background(), "TMempty")
	if err != nil {
		t.Fatalf("404 不应视为错误：%v", err)
	}
	if len(files) != 0 {
		t.Fatalf("404 应返回空列表：%+v", files)
	}
}

func TestListRootContents_RateLimited(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.ListRootContents(context.Background(), "TMtoh1")
	if !IsRateLimited(err) {
		t.Fatalf("限流必须映射为 RateLimitedError：%v", err)
	}
}

func TestDownload_BytesAndStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.txt" {
			_, _ = w.Write([]byte("content here"))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(httpx.NewAPIClient(""), httpx.NewRawClient(""), "MonlamAI")

	b, err := c.Download(context.Background(), srv.URL+"/ok.txt")
	if err != nil || string(b) != "content here" {
		t.Fatalf("下载结果不对：%q, %v", b, err)
	}

	if _, err := c.Download(context.Background(), srv.URL+"/missing.txt"); err == nil {
		t.Fatalf("非 2xx 下载必须报错")
	}
}

func TestCheckAuth(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "token tok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if err := c.CheckAuth(context.Background()); err != nil {
		t.Fatalf("有效 token 不应报错：%v", err)
	}
}
