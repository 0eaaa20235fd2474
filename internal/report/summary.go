package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/MonlamAI/tmcat/internal/domain"
)

// Coverage 统计一次运行产出的双语覆盖情况。
type Coverage struct {
	Total   int // 产出的目录行总数
	Both    int // bo 与 en 都选中
	OnlyBo  int
	OnlyEn  int
	Neither int

	// 平均行数只统计对应语言被选中的行。
	AvgBoLines float64
	AvgEnLines float64
}

// Summarize 从目录行计算覆盖统计。
func Summarize(rows []domain.CatalogRow) Coverage {
	var c Coverage
	var boSum, enSum, boN, enN int
	for _, r := range rows {
		c.Total++
		hasBo := r.BoFilePath != ""
		hasEn := r.EnFilePath != ""
		switch {
		case hasBo && hasEn:
			c.Both++
		case hasBo:
			c.OnlyBo++
		case hasEn:
			c.OnlyEn++
		default:
			c.Neither++
		}
		if hasBo {
			boSum += r.BoLinesNonEmpty
			boN++
		}
		if hasEn {
			enSum += r.EnLinesNonEmpty
			enN++
		}
	}
	if boN > 0 {
		c.AvgBoLines = float64(boSum) / float64(boN)
	}
	if enN > 0 {
		c.AvgEnLines = float64(enSum) / float64(enN)
	}
	return c
}

// RenderTable 把覆盖统计渲染为终端表格（给人看的汇总，不是机器契约）。
func RenderTable(c Coverage) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"coverage", "repos"})
	tw.AppendRows([]table.Row{
		{"bo + en", c.Both},
		{"bo only", c.OnlyBo},
		{"en only", c.OnlyEn},
		{"neither", c.Neither},
	})
	tw.AppendFooter(table.Row{"total", c.Total})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	out := tw.Render()
	out += fmt.Sprintf("\navg non-empty lines: bo %.1f / en %.1f\n", c.AvgBoLines, c.AvgEnLines)
	return out
}
