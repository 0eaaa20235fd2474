package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/pick"
	"github.com/MonlamAI/tmcat/internal/textdec"
	"github.com/MonlamAI/tmcat/internal/title"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 tmcat.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultOrg 是目标 GitHub 组织的默认值。
	DefaultOrg = "MonlamAI"
	// DefaultConcurrency 是仓库处理并发的内置默认值。
	DefaultConcurrency = 4
	// DefaultBatchSize 是 CSV 批量落盘的默认批大小。
	DefaultBatchSize = 20
	// DefaultOutputCSV 是主 CSV 的默认文件名（相对工作根目录）。
	DefaultOutputCSV = "catalog.csv"
)

// CLIArgs 只包含 CLI 暴露的三项入口（path/--limit/--retry-failed）。
type CLIArgs struct {
	Path string

	Limit    int
	LimitSet bool

	RetryFailed bool
}

// FileConfig 对应 tmcat.json 的解析结构。
type FileConfig struct {
	Path         string   `json:"path"`
	Org          string   `json:"org"`
	Concurrency  int      `json:"concurrency"`
	BatchSize    int      `json:"batch_size"`
	OutputCSV    string   `json:"output_csv"`
	LanguageTags []string `json:"language_tags"`
	Extensions   []string `json:"extensions"`
	Encodings    []string `json:"encodings"`
	Markers      []string `json:"markers"`
	GeminiModel  string   `json:"gemini_model"`
}

// EffectiveConfig 是合并并规范化后的最终配置
//（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string // 工作根目录（cache/、CSV、检查点都挂在这里），绝对路径
	Org  string

	Concurrency int
	BatchSize   int
	OutputCSV   string // 绝对路径

	LanguageTags []string // 默认 [bo en]
	Extensions   []string
	Encodings    []string
	Markers      []string
	GeminiModel  string

	// 运行范围参数（仅 CLI 提供）。
	Limit       int // 0 表示不限制
	RetryFailed bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/tmcat.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/tmcat.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - limit / retry-failed：仅 CLI 提供
// - 其余字段：config > 内置默认
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if cli.LimitSet && cli.Limit < 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwdAbs, Err: fmt.Errorf("--limit 必须 >= 1，实际 %d", cli.Limit)}
	}

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/tmcat.json。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, "tmcat.json")
		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/tmcat.json，且其中必须包含 path。
	cfgPath := filepath.Join(cwdAbs, "tmcat.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	org := strings.TrimSpace(fc.Org)
	if org == "" {
		org = DefaultOrg
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围约定 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	batch := fc.BatchSize
	if batch == 0 {
		batch = DefaultBatchSize
	}
	if batch < 1 {
		batch = 1
	}

	out := strings.TrimSpace(fc.OutputCSV)
	if out == "" {
		out = DefaultOutputCSV
	}
	out = absCleanFrom(absPath, out)

	tags := fc.LanguageTags
	if len(tags) == 0 {
		tags = []string{domain.LangBo, domain.LangEn}
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("language_tags 含空白项")}
		}
	}

	exts := fc.Extensions
	if len(exts) == 0 {
		exts = pick.DefaultExtensions()
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("extensions 项必须以 '.' 开头：%q", ext)}
		}
	}

	encs := fc.Encodings
	if len(encs) == 0 {
		encs = textdec.DefaultEncodings()
	}

	markers := fc.Markers
	if len(markers) == 0 {
		markers = title.DefaultMarkers()
	}

	model := strings.TrimSpace(fc.GeminiModel)
	if model == "" {
		model = title.DefaultGeminiModel
	}

	return EffectiveConfig{
		Path:         absPath,
		Org:          org,
		Concurrency:  concurrency,
		BatchSize:    batch,
		OutputCSV:    out,
		LanguageTags: append([]string(nil), tags...),
		Extensions:   append([]string(nil), exts...),
		Encodings:    append([]string(nil), encs...),
		Markers:      append([]string(nil), markers...),
		GeminiModel:  model,
		Limit:        cli.Limit,
		RetryFailed:  cli.RetryFailed,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
