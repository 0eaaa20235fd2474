// Package gh 封装对 GitHub REST API 的最小访问面：
// 仓库搜索、根目录列举、raw 文件下载。
package gh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MonlamAI/tmcat/internal/domain"
)

// maxFileBytes 限制单文件读取上限，防止异常大文件拖垮内存。
const maxFileBytes = 32 << 20

// HTTPStatusError 表示非 2xx 响应。上层按 StatusCode 映射 error_code。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.URL)
}

// RateLimitedError 表示命中 GitHub 限流（403/429 + 耗尽提示）。
// RetryAfter 为 0 表示服务端未给出等待时长。
type RateLimitedError struct {
	URL        string
	RetryAfter int // 秒
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %ds): %s", e.RetryAfter, e.URL)
	}
	return "rate limited: " + e.URL
}

func IsRateLimited(err error) bool {
	var e *RateLimitedError
	return errors.As(err, &e)
}

// Client 持有两个 HTTP client：API 请求（带 Accept 头）与 raw 下载。
type Client struct {
	API     *http.Client
	Raw     *http.Client
	BaseURL string // 默认 https://api.github.com；测试时指向 httptest
	Org     string
}

const defaultBaseURL = "https://api.github.com"

func NewClient(api, raw *http.Client, org string) *Client {
	return &Client{API: api, Raw: raw, BaseURL: defaultBaseURL, Org: org}
}

// CheckAuth 验证 token 是否有效（GET /user）。
// 401 视为认证失败；其余非 2xx 按一般状态错误返回。
func (c *Client) CheckAuth(ctx context.Context) error {
	resp, err := c.getAPI(ctx, c.BaseURL+"/user")
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return &HTTPStatusError{URL: c.BaseURL + "/user", StatusCode: resp.StatusCode}
	}
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

// ListRootContents 列举仓库根目录的文件项。
//
// 规则：
// - 只保留 type=file 的条目（目录、symlink 等一律忽略）
// - 404（空仓库或根目录不存在）不视为错误，返回空列表
func (c *Client) ListRootContents(ctx context.Context, repo string) ([]domain.FileEntry, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/", c.BaseURL, url.PathEscape(c.Org), url.PathEscape(repo))
	resp, err := c.getAPI(ctx, u)
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}

	var entries []domain.FileEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFileBytes)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析 contents 响应失败（%s）：%w", repo, err)
	}

	files := entries[:0]
	for _, e := range entries {
		if e.Type == "file" {
			files = append(files, e)
		}
	}
	return files, nil
}

// Download 通过 download_url 拉取文件原始字节。
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Raw.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, fmt.Errorf("读取文件内容失败（%s）：%w", downloadURL, err)
	}
	return b, nil
}

func (c *Client) getAPI(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.API.Do(req)
}

// statusError 把响应映射为结构化错误；限流单独标记。
func statusError(resp *http.Response) error {
	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.String()
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if isRateLimitResponse(resp) {
			ra, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			return &RateLimitedError{URL: u, RetryAfter: ra}
		}
	}
	return &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
}

func isRateLimitResponse(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	// 403 + X-RateLimit-Remaining: 0 是 GitHub 限流的经典形态。
	return strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining")) == "0"
}

// drainClose 读尽 body 再关闭，让底层连接可复用。
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
