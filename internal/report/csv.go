// Package report 负责目录行的落盘（CSV）与运行结束时的汇总呈现。
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/infra/fsx"
)

// AppendRows 把一批目录行追加到 path 指向的 CSV。
//
// 规则：
// - 文件不存在或为空时先写表头；否则只追加数据行
// - 追加是批粒度的：同一批要么全部写入，要么在错误处停止并返回错误
func AppendRows(path string, rows []domain.CatalogRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		if err := w.Write(domain.Header()); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := w.Write(r.Fields()); err != nil {
			return fmt.Errorf("写入 CSV 行失败（%s）：%w", r.RepoName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// WriteCheckpoint 把到目前为止的全部行写成独立检查点文件
// checkpoint_NNNN.csv（原子替换，自带表头）。
//
// 检查点是主 CSV 之外的安全网：主文件被截断或损坏时，
// 最近一个检查点仍是完整可用的快照。
func WriteCheckpoint(dir string, seq int, rows []domain.CatalogRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.Fields()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	name := fmt.Sprintf("checkpoint_%04d.csv", seq)
	return fsx.WriteFileAtomicReplace(dir, name, buf.Bytes())
}
