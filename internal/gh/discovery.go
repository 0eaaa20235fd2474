package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/MonlamAI/tmcat/internal/domain"
)

// search API 单查询最多返回 1000 条，所以不能只搜 "TM" 一个词。
// searchPatterns 用更具体的前缀把结果切小，最后再用宽前缀兜底去重。
func searchPatterns() []string {
	patterns := []string{
		"TMtoh", "TMICD", "TMKGY", "TMKAN", "TMGYU",
		"TMDEN", "TMTSA", "TMNAR", "TMDUD", "TMSHAD",
	}
	for d := '0'; d <= '9'; d++ {
		patterns = append(patterns, "TM"+string(d))
	}
	patterns = append(patterns, "TM_", "TM-")
	for ch := 'a'; ch <= 'z'; ch++ {
		if ch == 't' {
			// TMtoh 已覆盖该子空间。
			continue
		}
		patterns = append(patterns, "TM"+string(ch))
	}
	for ch := 'A'; ch <= 'Z'; ch++ {
		patterns = append(patterns, "TM"+string(ch))
	}
	return append(patterns, "TM")
}

const searchPerPage = 100

type searchPage struct {
	TotalCount int              `json:"total_count"`
	Items      []domain.RepoRef `json:"items"`
}

// SearchTMRepos 在组织内发现所有 TM 前缀仓库。
//
// 规则：
// - 逐 pattern 搜索并翻页，按仓库 ID 去重
// - 只保留名称以 "TM" 开头的仓库（search 的 in:name 是子串匹配，需二次过滤）
// - 结果按名称稳定排序，保证多次发现产出相同顺序
func (c *Client) SearchTMRepos(ctx context.Context) ([]domain.RepoRef, error) {
	seen := make(map[int64]struct{})
	var repos []domain.RepoRef

	for _, pattern := range searchPatterns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := c.searchPattern(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("搜索 %q 失败：%w", pattern, err)
		}
		for _, r := range found {
			if !strings.HasPrefix(r.Name, "TM") {
				continue
			}
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			repos = append(repos, r)
		}
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

func (c *Client) searchPattern(ctx context.Context, pattern string) ([]domain.RepoRef, error) {
	var out []domain.RepoRef
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("org:%s %s in:name", c.Org, pattern))
		q.Set("per_page", strconv.Itoa(searchPerPage))
		q.Set("page", strconv.Itoa(page))
		u := c.BaseURL + "/search/repositories?" + q.Encode()

		resp, err := c.getAPI(ctx, u)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode/100 != 2 {
			err := statusError(resp)
			drainClose(resp.Body)
			return nil, err
		}

		var sp searchPage
		decErr := json.NewDecoder(io.LimitReader(resp.Body, maxFileBytes)).Decode(&sp)
		drainClose(resp.Body)
		if decErr != nil {
			return nil, fmt.Errorf("解析搜索响应失败：%w", decErr)
		}

		out = append(out, sp.Items...)
		// search API 的硬上限是 1000 条；短页或到顶即停。
		if len(sp.Items) < searchPerPage || page*searchPerPage >= 1000 {
			return out, nil
		}
	}
}
