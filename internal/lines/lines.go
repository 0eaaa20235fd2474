// Package lines 统计文本行数并产出标题搜索用的非空行序列。
package lines

import "strings"

// Stats 是一段文本的行统计。
//
// 不变量：NonEmpty <= Total；NonEmpty==0 等价于 NonEmptyLines 为空。
// NonEmptyLines 是独立切片，调用方可任意消费而不影响后续使用。
type Stats struct {
	Total    int
	NonEmpty int

	// NonEmptyLines 按原始顺序保存去除首尾空白后的非空行。
	NonEmptyLines []string
}

// Analyze 按 "\n" 切分文本并统计。
//
// 规则：
// - Total 统计所有分段（含空行与末尾空段），与原始数据的行结构一致
// - "\r" 在判空与入列前被剔除（兼容 CRLF 文件）
// - 空文本返回零值（Total=0，而不是 1 个空段）
func Analyze(text string) Stats {
	if text == "" {
		return Stats{NonEmptyLines: []string{}}
	}

	parts := strings.Split(text, "\n")
	st := Stats{
		Total:         len(parts),
		NonEmptyLines: make([]string, 0, len(parts)),
	}
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimSuffix(p, "\r"))
		if p == "" {
			continue
		}
		st.NonEmpty++
		st.NonEmptyLines = append(st.NonEmptyLines, p)
	}
	return st
}
