// Package run 编排一次完整运行：发现仓库 → 过滤已处理 → 并发处理 →
// 批量落盘 → 汇总报告。
package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/MonlamAI/tmcat/internal/app"
	"github.com/MonlamAI/tmcat/internal/config"
	"github.com/MonlamAI/tmcat/internal/domain"
	"github.com/MonlamAI/tmcat/internal/gh"
	"github.com/MonlamAI/tmcat/internal/infra/cache"
	"github.com/MonlamAI/tmcat/internal/report"
	"github.com/MonlamAI/tmcat/internal/title"
)

// Execute 执行一次 run，并返回对外稳定的 RunReport 与本次产出的覆盖统计。
// 该函数尽量把错误“降级”为仓库级失败（单仓库失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, client *gh.Client, gem *title.Gemini, obs Observer) (domain.RunReport, report.Coverage) {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Org:       eff.Org,
		OutputCSV: eff.OutputCSV,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}

	store := cache.New(eff.Path)

	// 发现阶段：优先用缓存，缺失/损坏则搜索并写回。
	discoverStarted := time.Now()
	repos, fromCache, err := discover(ctx, client, store, eff.Org)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(mapErrorCode(err, domain.ErrCodeDiscoveryFailed), fmt.Sprintf("仓库发现失败：%v", err)))
		return finish(rr, nil, obs)
	}
	if obs != nil {
		obs.OnPhaseDone("discover", map[string]any{
			"repos":  len(repos),
			"cached": fromCache,
		}, time.Since(discoverStarted))
	}

	// 过滤阶段：已处理跳过；失败集合默认跳过，--retry-failed 时重试。
	progress, err := store.ReadProgress()
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("读取进度失败：%v", err)))
		return finish(rr, nil, obs)
	}
	processedSet := make(map[string]struct{}, len(progress.Processed))
	for _, name := range progress.Processed {
		processedSet[name] = struct{}{}
	}

	pending := make([]domain.RepoRef, 0, len(repos))
	for _, r := range repos {
		if _, done := processedSet[r.Name]; done {
			rr.Items = append(rr.Items, domain.ItemResult{
				Repo: r.Name, RepoURL: r.HTMLURL, Status: domain.StatusSkipped,
			})
			continue
		}
		if _, failed := progress.Failed[r.Name]; failed && !eff.RetryFailed {
			rr.Items = append(rr.Items, domain.ItemResult{
				Repo: r.Name, RepoURL: r.HTMLURL, Status: domain.StatusSkipped,
				ErrorCode: "", ErrorMsg: "", Notes: "previously failed; rerun with --retry-failed",
			})
			continue
		}
		pending = append(pending, r)
	}
	if eff.Limit > 0 && len(pending) > eff.Limit {
		pending = pending[:eff.Limit]
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_repos": len(pending),
			"skipped":     len(rr.Items),
		}, 0)
	}

	pipe := &app.Pipeline{
		Client:       client,
		Gemini:       gem,
		LanguageTags: eff.LanguageTags,
		Extensions:   eff.Extensions,
		Encodings:    eff.Encodings,
		Markers:      eff.Markers,
	}

	type execResult struct {
		repo domain.RepoRef
		row  domain.CatalogRow
		err  error
		dur  time.Duration
	}

	jobs := make(chan domain.RepoRef)
	results := make(chan execResult, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				oneStarted := time.Now()
				row, err := pipe.ProcessRepo(ctx, r)
				results <- execResult{repo: r, row: row, err: err, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, r := range pending {
			select {
			case jobs <- r:
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				close(results)
				return
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// 消费结果：每满一批追加 CSV + 写检查点 + 落进度。
	checkpointDir := filepath.Dir(eff.OutputCSV)
	var allRows, batch []domain.CatalogRow
	checkpointSeq := 0
	done := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := report.AppendRows(eff.OutputCSV, batch); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写入 CSV 失败：%v", err)))
		}
		checkpointSeq++
		if err := report.WriteCheckpoint(checkpointDir, checkpointSeq, allRows); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写检查点失败：%v", err)))
		}
		if err := store.WriteProgress(progress); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写进度失败：%v", err)))
		}
		batch = batch[:0]
	}

	for res := range results {
		done++
		item := domain.ItemResult{Repo: res.repo.Name, RepoURL: res.repo.HTMLURL}

		if res.err != nil {
			item.Status = domain.StatusFailed
			item.ErrorCode = mapErrorCode(res.err, domain.ErrCodeFetchFailed)
			item.ErrorMsg = res.err.Error()
			progress.Failed[res.repo.Name] = item.ErrorMsg
		} else {
			item.Status = domain.StatusProcessed
			item.Notes = res.row.Notes
			allRows = append(allRows, res.row)
			batch = append(batch, res.row)
			progress.Processed = append(progress.Processed, res.repo.Name)
			delete(progress.Failed, res.repo.Name)
		}

		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(done, len(pending), res.repo.Name, item, res.dur)
		}
		if len(batch) >= eff.BatchSize {
			flush()
		}
	}
	flush()
	if err := store.WriteProgress(progress); err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("写进度失败：%v", err)))
	}

	return finish(rr, allRows, obs)
}

func finish(rr domain.RunReport, rows []domain.CatalogRow, obs Observer) (domain.RunReport, report.Coverage) {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	cov := report.Summarize(rows)
	if obs != nil {
		obs.OnPhaseDone("summary", map[string]any{
			"rows":    cov.Total,
			"both":    cov.Both,
			"only_bo": cov.OnlyBo,
			"only_en": cov.OnlyEn,
			"neither": cov.Neither,
		}, 0)
	}
	return rr, cov
}

// discover 返回组织的 TM 仓库列表；fromCache 指示是否来自本地缓存。
func discover(ctx context.Context, client *gh.Client, store cache.Store, org string) ([]domain.RepoRef, bool, error) {
	if rl, ok, err := store.ReadRepoList(); err == nil && ok && rl.Organization == org && len(rl.Repos) > 0 {
		return rl.Repos, true, nil
	}
	repos, err := client.SearchTMRepos(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := store.WriteRepoList(org, repos); err != nil {
		return nil, false, err
	}
	return repos, false, nil
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Repo:      "",
		RepoURL:   "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// mapErrorCode 把底层错误归类为对外稳定的 error_code。
func mapErrorCode(err error, fallback string) string {
	if gh.IsRateLimited(err) {
		return domain.ErrCodeRateLimited
	}
	var hs *gh.HTTPStatusError
	if errors.As(err, &hs) {
		if hs.StatusCode == 401 {
			return domain.ErrCodeAuthFailed
		}
		return domain.ErrCodeFetchFailed
	}
	return fallback
}
