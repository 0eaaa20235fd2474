// Package cache 提供 <path>/cache/ 下的运行状态读写：
// 仓库发现结果、断点续跑进度、Gemini 响应缓存。
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/infra/fsx"
)

// Store 以 Root（工作根目录）为锚点管理 cache/ 子树。
//
// 布局：
//
//	<root>/cache/repos.json      仓库发现结果（含组织名与时间戳）
//	<root>/cache/progress.json   已处理/失败集合（断点续跑依据）
//	<root>/cache/gemini/<key>.json  按内容键缓存的模型响应
//
// 所有写入都走原子替换，读到的文件要么完整要么不存在。
type Store struct {
	Root string
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

func (s Store) dir() string { return filepath.Join(s.Root, "cache") }

// RepoList 是仓库发现结果的落盘信封。
type RepoList struct {
	Organization string           `json:"organization"`
	TotalCount   int              `json:"total_count"`
	CachedAt     time.Time        `json:"cached_at"`
	Repos        []domain.RepoRef `json:"repos"`
}

// ReadRepoList 读取仓库发现缓存；不存在返回 (zero, false, nil)。
func (s Store) ReadRepoList() (RepoList, bool, error) {
	var rl RepoList
	b, err := os.ReadFile(filepath.Join(s.dir(), "repos.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return rl, false, nil
		}
		return rl, false, err
	}
	if err := json.Unmarshal(b, &rl); err != nil {
		// 缓存损坏等价于缓存缺失：调用方会重新发现并覆盖写入。
		return RepoList{}, false, nil
	}
	return rl, true, nil
}

// WriteRepoList 写入仓库发现缓存（补齐时间戳与计数）。
func (s Store) WriteRepoList(org string, repos []domain.RepoRef) error {
	rl := RepoList{
		Organization: org,
		TotalCount:   len(repos),
		CachedAt:     time.Now().UTC(),
		Repos:        repos,
	}
	b, err := json.MarshalIndent(rl, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(s.dir(), "repos.json", b)
}

// Progress 记录断点续跑状态。
//
// 规则：
// - Processed 中的仓库在下一次运行中直接跳过
// - Failed 记录 repo -> 最后一次错误消息；--retry-failed 时会重新尝试
type Progress struct {
	Processed []string          `json:"processed_repos"`
	Failed    map[string]string `json:"failed_repos"`
	SavedAt   time.Time         `json:"saved_at"`
}

// ReadProgress 读取进度；不存在返回空进度（map 已初始化，可直接写）。
func (s Store) ReadProgress() (Progress, error) {
	p := Progress{Failed: map[string]string{}}
	b, err := os.ReadFile(filepath.Join(s.dir(), "progress.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return Progress{Failed: map[string]string{}}, nil
	}
	if p.Failed == nil {
		p.Failed = map[string]string{}
	}
	return p, nil
}

// WriteProgress 写入进度（补齐时间戳）。
func (s Store) WriteProgress(p Progress) error {
	p.SavedAt = time.Now().UTC()
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(s.dir(), "progress.json", b)
}

// 缓存键由调用方以内容哈希生成；路径拼接前仍校验形状，杜绝路径穿越。
var geminiKeyRE = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ReadGemini 读取模型响应缓存；键不存在返回 (nil, false, nil)。
func (s Store) ReadGemini(key string) ([]byte, bool, error) {
	if !geminiKeyRE.MatchString(key) {
		return nil, false, fmt.Errorf("非法缓存键：%q", key)
	}
	b, err := os.ReadFile(filepath.Join(s.dir(), "gemini", key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// WriteGemini 写入模型响应缓存。
func (s Store) WriteGemini(key string, b []byte) error {
	if !geminiKeyRE.MatchString(key) {
		return fmt.Errorf("非法缓存键：%q", key)
	}
	return fsx.WriteFileAtomicReplace(filepath.Join(s.dir(), "gemini"), key+".json", b)
}
