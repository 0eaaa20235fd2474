package httpx

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2

	// userAgent 固定：GitHub API 要求请求带 UA，且希望是稳定可追溯的标识。
	userAgent = "tmcat (+https://github.com/MonlamAI/tmcat)"

	acceptAPI = "application/vnd.github.v3+json"
)

// Transport 把“认证 + API 头 + 有界重试”固化为统一策略。
//
// 设计目标：gh 包只负责“定位 endpoint + 解析 JSON”，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	// Token 非空时注入 Authorization: token <...>（GitHub PAT 约定）。
	Token string

	// AcceptAPI 决定是否注入 application/vnd.github.v3+json
	//（API 请求需要；raw 下载保持默认 Accept）。
	AcceptAPI bool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 {
		max = 0
	}
	if !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := cloneRequest(req)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", userAgent)
		}
		if t.AcceptAPI && r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", acceptAPI)
		}
		if t.Token != "" && r.Header.Get("Authorization") == "" {
			r.Header.Set("Authorization", "token "+t.Token)
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func cloneRequest(req *http.Request) *http.Request {
	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	return req.Clone(req.Context())
}

// NewAPIClient 构造访问 GitHub REST API 的 HTTP client
//（注入 token + API Accept + 固定 UA + 有界重试 + 总超时）。
func NewAPIClient(token string) *http.Client {
	return newClient(token, true)
}

// NewRawClient 构造下载 raw 文件内容的 HTTP client。
//
// 规则：仍带 token（私有仓库的 download_url 需要），但不注入 API Accept，
// 以免拿到 JSON 包装而不是文件字节。
func NewRawClient(token string) *http.Client {
	return newClient(token, false)
}

func newClient(token string, acceptAPI bool) *http.Client {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	tr := &Transport{
		Base:      base,
		Token:     strings.TrimSpace(token),
		AcceptAPI: acceptAPI,
		RetryMax:  defaultRetryMax,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   defaultTimeout,
	}
}
