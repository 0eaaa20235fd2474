// Package app 把单仓库的处理流水线（列举 → 选文件 → 下载 → 解码 →
// 统计 → 提标题 → 组装目录行）组合为一个可并发调用的单元。
package app

import (
	"context"
	"fmt"

	"github.com/MonlamAI/tmcat/internal/catalog"
	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/gh"
	"github.com/MonlamAI/tmcat/internal/lines"
	"github.com/MonlamAI/tmcat/internal/pick"
	"github.com/MonlamAI/tmcat/internal/textdec"
	"github.com/MonlamAI/tmcat/internal/title"
)

// Pipeline 持有处理单仓库所需的全部依赖与参数。
//
// 约束：
// - 无内部可变状态，多 goroutine 可共享同一实例
// - Gemini 为 nil 时跳过配对标题增强，只用规则提取
type Pipeline struct {
	Client *gh.Client
	Gemini *title.Gemini

	LanguageTags []string // 固定 bo 在前（notes 顺序依赖它）
	Extensions   []string
	Encodings    []string
	Markers      []string
}

// ProcessRepo 处理一个仓库并返回一行目录。
//
// 降级规则：
// - 某语言无匹配文件：该侧留空并记 note，不算失败
// - 网络/解码之外的异常同样进 note
// - 返回 error 仅代表仓库级失败（列举失败、选中文件下载失败），
//   调用方据此把该仓库记入 failed 集合
func (p *Pipeline) ProcessRepo(ctx context.Context, repo domain.RepoRef) (domain.CatalogRow, error) {
	entries, err := p.Client.ListRootContents(ctx, repo.Name)
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("列举 %s 根目录失败：%w", repo.Name, err)
	}

	paths := make([]string, 0, len(entries))
	byPath := make(map[string]domain.FileEntry, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
		byPath[e.Path] = e
	}

	sels := make([]catalog.Selection, len(p.LanguageTags))
	for i, tag := range p.LanguageTags {
		sel, err := p.selectAndRead(ctx, tag, paths, byPath)
		if err != nil {
			return domain.CatalogRow{}, fmt.Errorf("仓库 %s 的 %s 文件处理失败：%w", repo.Name, tag, err)
		}
		sels[i] = sel
	}

	// 目录行固定两列语言（bo/en）；额外语言标签只参与选择，不进 CSV。
	var bo, en catalog.Selection
	for i, tag := range p.LanguageTags {
		switch tag {
		case domain.LangBo:
			bo = sels[i]
		case domain.LangEn:
			en = sels[i]
		}
	}

	row := catalog.Build(repo.Name, repo.HTMLURL, bo, en)
	p.enhanceTitles(ctx, &row, bo, en)
	return row, nil
}

func (p *Pipeline) selectAndRead(ctx context.Context, tag string, paths []string, byPath map[string]domain.FileEntry) (catalog.Selection, error) {
	winner, alts, ok := pick.Select(paths, tag, p.Extensions)
	if !ok {
		return catalog.Selection{}, nil
	}

	entry := byPath[winner]
	raw, err := p.Client.Download(ctx, entry.DownloadURL)
	if err != nil {
		return catalog.Selection{}, err
	}

	dec := textdec.Decode(raw, p.Encodings)
	stats := lines.Analyze(dec.Text)
	res := title.Extract(stats.NonEmptyLines, tag, p.Markers)

	return catalog.Selection{
		Path:         winner,
		Alternatives: alts,
		Encoding:     dec.Encoding,
		Stats:        stats,
		Title:        res,
	}, nil
}

// enhanceTitles 在两种语言都有内容时请求配对标题。
// 失败时静默回退规则提取结果（目录行保持可用）。
func (p *Pipeline) enhanceTitles(ctx context.Context, row *domain.CatalogRow, bo, en catalog.Selection) {
	if p.Gemini == nil {
		return
	}
	if bo.Missing() || en.Missing() || bo.Stats.NonEmpty == 0 || en.Stats.NonEmpty == 0 {
		return
	}

	pair, err := p.Gemini.ExtractPair(ctx, bo.Stats.NonEmptyLines, en.Stats.NonEmptyLines)
	if err != nil {
		return
	}

	row.BoTitle = pair.Tibetan
	row.EnTitle = pair.English
	if row.Notes == "" {
		row.Notes = "titles via gemini"
	} else {
		row.Notes += "; titles via gemini"
	}
}
