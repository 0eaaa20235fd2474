// Package pick 从一组候选路径中为某个语言标记挑出唯一的“最佳”文件。
package pick

import (
	"path"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultExtensions 返回默认的纯文本扩展名集合。
func DefaultExtensions() []string {
	return []string{".txt"}
}

// Select 过滤并排序候选路径，返回胜者与剩余候选（两者都可追溯）。
//
// 过滤：路径（大小写不敏感）包含 tag 子串，且扩展名在 exts 内。
//
// 排序（升序 = 更优，三键稳定排序保证确定性）：
// 1) 路径深度：分隔符切出的段数，根目录文件最优
// 2) 文件名长度（按字符计）：同深度下短者优
// 3) 完整路径字典序：最终决胜键
//
// 空过滤结果：ok=false，alternatives 为空，由调用方记 missing 异常。
// 相同输入必须产出相同的胜者与相同的 alternatives 顺序。
func Select(paths []string, tag string, exts []string) (winner string, alternatives []string, ok bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))

	matched := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(p), tag) {
			continue
		}
		if !hasAllowedExt(p, exts) {
			continue
		}
		matched = append(matched, p)
	}
	if len(matched) == 0 {
		return "", nil, false
	}

	sort.SliceStable(matched, func(i, j int) bool {
		di, dj := depth(matched[i]), depth(matched[j])
		if di != dj {
			return di < dj
		}
		li := utf8.RuneCountInString(path.Base(matched[i]))
		lj := utf8.RuneCountInString(path.Base(matched[j]))
		if li != lj {
			return li < lj
		}
		return matched[i] < matched[j]
	})

	return matched[0], matched[1:], true
}

func hasAllowedExt(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == strings.ToLower(strings.TrimSpace(e)) {
			return true
		}
	}
	return false
}

// depth 统计路径分隔符数量：根目录文件为 0，"a/b/x.txt" 为 2。
func depth(p string) int {
	return strings.Count(p, "/")
}
