package domain

import "strconv"

// CatalogRow 是 CSV 目录的一行（11 列，顺序固定，对外稳定契约）。
//
// 约束：
// - 每种语言最多一个被选中的文件路径；候选冲突等异常只进 Notes（自由文本）
// - 组装完成后不可变：相同输入必须产出逐字节相同的行
type CatalogRow struct {
	RepoName string
	RepoURL  string

	BoFilePath      string
	BoLinesNonEmpty int
	BoLinesTotal    int
	BoTitle         string

	EnFilePath      string
	EnLinesNonEmpty int
	EnLinesTotal    int
	EnTitle         string

	Notes string
}

// Header 返回 CSV 表头（列名与顺序是对外契约，禁止调整）。
func Header() []string {
	return []string{
		"repo_name",
		"repo_url",
		"bo_file_path",
		"bo_lines_nonempty",
		"bo_lines_total",
		"bo_title",
		"en_file_path",
		"en_lines_nonempty",
		"en_lines_total",
		"en_title",
		"notes",
	}
}

// Fields 按表头顺序返回该行的字段值（数值转十进制字符串）。
func (r CatalogRow) Fields() []string {
	return []string{
		r.RepoName,
		r.RepoURL,
		r.BoFilePath,
		strconv.Itoa(r.BoLinesNonEmpty),
		strconv.Itoa(r.BoLinesTotal),
		r.BoTitle,
		r.EnFilePath,
		strconv.Itoa(r.EnLinesNonEmpty),
		strconv.Itoa(r.EnLinesTotal),
		r.EnTitle,
		r.Notes,
	}
}
