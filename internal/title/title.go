// Package title 按语言规则从非空行序列中提取代表性标题。
package title

import (
	"strings"

	"github.com/MonlamAI/tmcat/internal/domain"
)

// Source 标记标题来自哪条规则（进报告用，便于解释提取质量）。
const (
	SourceMarker    = "marker"
	SourceFirstLine = "first_line"
	SourceNone      = "none"
)

// markerScanLimit 是藏文标记搜索的行数窗口：标题性标记几乎总出现在
// 文件最前面，扫描过深只会把正文里的引用行误判为标题。
const markerScanLimit = 10

// DefaultMarkers 返回默认的藏文标题标记（按优先级排列）。
func DefaultMarkers() []string {
	return []string{
		"བོད་སྐད་དུ", // 译语起始标记（“以藏语云”）
		"མདོ།",       // 经
		"སྔགས།",      // 咒
		"གཟུངས།",     // 陀罗尼
	}
}

// Result 是一次标题提取的结果。
type Result struct {
	Title  string
	Source string
}

// Extract 对非空行序列应用语言规则。
//
// 规则：
// - en：取第一个非空行；序列为空则 Source=none
// - bo：在前 10 个非空行内按 markers 的优先级做子串匹配，
//   首个命中行整行作为标题（Source=marker）；窗口内无命中则回退
//   到第一个非空行（Source=first_line）；序列为空则 Source=none
//
// markers 是调用方传入的不可变配置，本包不持有任何跨调用状态。
func Extract(nonEmptyLines []string, lang string, markers []string) Result {
	if len(nonEmptyLines) == 0 {
		return Result{Source: SourceNone}
	}

	if lang != domain.LangBo {
		return Result{Title: nonEmptyLines[0], Source: SourceFirstLine}
	}

	limit := markerScanLimit
	if len(nonEmptyLines) < limit {
		limit = len(nonEmptyLines)
	}
	for _, line := range nonEmptyLines[:limit] {
		for _, m := range markers {
			if m == "" {
				continue
			}
			if strings.Contains(line, m) {
				return Result{Title: line, Source: SourceMarker}
			}
		}
	}
	return Result{Title: nonEmptyLines[0], Source: SourceFirstLine}
}
