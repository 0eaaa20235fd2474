// Package catalog 把单仓库的选择/解码/统计/标题结果组装为一行目录。
package catalog

import (
	"strings"

	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/lines"
	"github.com/MonlamAI/tmcat/internal/textdec"
	"github.com/MonlamAI/tmcat/internal/title"
)

// Selection 是某个语言走完 pick→decode→lines→title 流水线后的结果。
// Path 为空表示该语言没有匹配文件（零值即 missing 哨兵）。
type Selection struct {
	Path         string
	Alternatives []string

	Encoding string // 实际使用的编码名；Path 为空时无意义
	Stats    lines.Stats
	Title    title.Result
}

// Missing 报告该语言是否没有选中文件。
func (s Selection) Missing() bool { return s.Path == "" }

// Build 组装一行目录。
//
// 规则（notes 按 missing → multiple candidates → decode fallback 的
// 顺序累积，同类异常 bo 先于 en；分号连接，无异常为空串）：
// - missing：路径/标题留空、行数为 0，记 "missing {bo|en} file"
// - 多候选：记 "multiple {bo|en} candidates: ..."，选择结果不受影响
// - 非 utf-8 解码：记 "{bo|en} file decoded with fallback encoding {name}"
// - 空文件：行数为 0、标题为空（由字段本身表达，不另记 note）
//
// 纯聚合：任何空/部分输入组合都不失败；相同输入产出逐字节相同的行。
func Build(repoName, repoURL string, bo, en Selection) domain.CatalogRow {
	row := domain.CatalogRow{
		RepoName: repoName,
		RepoURL:  repoURL,
	}

	if !bo.Missing() {
		row.BoFilePath = bo.Path
		row.BoLinesNonEmpty = bo.Stats.NonEmpty
		row.BoLinesTotal = bo.Stats.Total
		row.BoTitle = bo.Title.Title
	}
	if !en.Missing() {
		row.EnFilePath = en.Path
		row.EnLinesNonEmpty = en.Stats.NonEmpty
		row.EnLinesTotal = en.Stats.Total
		row.EnTitle = en.Title.Title
	}

	langs := []struct {
		lang string
		sel  Selection
	}{
		{domain.LangBo, bo},
		{domain.LangEn, en},
	}

	notes := make([]string, 0, 6)
	for _, l := range langs {
		if l.sel.Missing() {
			notes = append(notes, "missing "+l.lang+" file")
		}
	}
	for _, l := range langs {
		if !l.sel.Missing() && len(l.sel.Alternatives) > 0 {
			notes = append(notes, "multiple "+l.lang+" candidates: "+strings.Join(l.sel.Alternatives, ", "))
		}
	}
	for _, l := range langs {
		if !l.sel.Missing() && l.sel.Encoding != "" && l.sel.Encoding != textdec.EncUTF8 {
			notes = append(notes, l.lang+" file decoded with fallback encoding "+l.sel.Encoding)
		}
	}

	row.Notes = strings.Join(notes, "; ")
	return row
}
