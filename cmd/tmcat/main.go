package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MonlamAI/tmcat/internal/app/run"
	"github.com/MonlamAI/tmcat/internal/config"
	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/gh"
	"github.com/MonlamAI/tmcat/internal/infra/cache"
	"github.com/MonlamAI/tmcat/internal/infra/httpx"
	"github.com/MonlamAI/tmcat/internal/report"
	"github.com/MonlamAI/tmcat/internal/title"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	// .env 是可选的：不存在不算错误（token 也可能来自真实环境变量）。
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:        ra.Path,
		Limit:       ra.Limit,
		LimitSet:    ra.LimitSet,
		RetryFailed: ra.RetryFailed,
	})
	if err != nil {
		emitReport(syntheticReport(cwdAbs, config.Code(err), err.Error()))
		return 1
	}

	token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	if token == "" {
		emitReport(syntheticReport(eff.Path, domain.ErrCodeAuthFailed,
			"缺少 GITHUB_TOKEN（环境变量或 .env）；GitHub search API 未认证时几乎立即限流"))
		return 1
	}

	client := gh.NewClient(httpx.NewAPIClient(token), httpx.NewRawClient(token), eff.Org)

	// Gemini 是可选增强：没有 key 就只用规则提取。
	var gem *title.Gemini
	if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "" {
		g, e := title.NewGemini(context.Background(), eff.GeminiModel, cache.New(eff.Path))
		if e != nil {
			fmt.Fprintf(os.Stderr, "初始化 gemini 失败（继续，仅用规则提取）：%v\n", e)
		} else {
			gem = g
		}
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr, cov := run.Execute(context.Background(), eff, client, gem, obs)

	emitReport(rr)
	if interactive {
		fmt.Fprintln(progressW)
		fmt.Fprintln(progressW, report.RenderTable(cov))
		fmt.Fprintf(progressW, "csv: %s\n", eff.OutputCSV)
		fmt.Fprintf(progressW, "cache: %s\n", filepath.Join(eff.Path, "cache"))
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Path        string
	Limit       int
	LimitSet    bool
	RetryFailed bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--limit":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--limit 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return runArgs{}, fmt.Errorf("--limit 需要整数，实际是 %q", args[i])
			}
			ra.Limit = n
			ra.LimitSet = true
		case strings.HasPrefix(a, "--limit="):
			v := strings.TrimPrefix(a, "--limit=")
			n, err := strconv.Atoi(v)
			if err != nil {
				return runArgs{}, fmt.Errorf("--limit 需要整数，实际是 %q", v)
			}
			ra.Limit = n
			ra.LimitSet = true
		case a == "--retry-failed":
			ra.RetryFailed = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  tmcat run [path] [--limit N] [--retry-failed]

命令：
  run    发现组织内 TM 仓库并生成双语目录 CSV（支持断点续跑）

使用 "tmcat run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  tmcat run [path] [--limit N] [--retry-failed]

参数：
  path            工作根目录（CSV、cache、进度都写在这里）；
                  未指定时读取 <cwd>/tmcat.json 的 path 字段
  --limit N       本次最多处理 N 个仓库（调试/抽样用）
  --retry-failed  重新尝试此前失败的仓库
  -h, --help      显示帮助

环境变量：
  GITHUB_TOKEN    必需；也可写入 .env
  GEMINI_API_KEY  可选；存在时启用配对标题增强
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：processed=%d skipped=%d failed=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed {
					continue
				}
				key := it.Repo
				if key == "" {
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

func syntheticReport(path, code, msg string) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       path,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  msg,
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
