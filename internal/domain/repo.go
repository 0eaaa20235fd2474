package domain

// Lang 是语言标记（bo/en），同时用于文件名匹配与标题规则选择。
const (
	LangBo = "bo"
	LangEn = "en"
)

// RepoRef 是发现阶段得到的仓库引用。
//
// 约束：
// - 字段与 GitHub API / cache/repos.json 一一对应（不要掺入派生字段）
// - Name 是本系统内的主键（org 内仓库名唯一）
type RepoRef struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	ID       int64  `json:"id"`
}

// FileEntry 是仓库根目录列表中的一个文件条目（只保留本系统需要的字段）。
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" / "dir"
	DownloadURL string `json:"download_url"`
}
