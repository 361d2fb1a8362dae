package app

import (
	"context"
	"errors"

	"bead-road-feed/internal/chain"
	"bead-road-feed/internal/storage"
)

// Backfill 顺序回填历史区块的结果记录。
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.FromHeight > opts.ToHeight {
		return errors.New("回填范围为空，请检查 --from-height/--to-height")
	}

	var store *storage.Store
	var closeStore func()
	var err error

	if opts.DryRun {
		a.Logger.Warn().Msg("回填 dry-run：不会写入数据库")
	} else {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn 未配置，无法回填")
		}
		if closeStore != nil {
			defer closeStore()
		}

		// 并发回填作业通过 advisory lock 保持单飞
		if key := a.Config.Chain.AdvisoryLockKey; key != 0 {
			unlock, acquired, lockErr := store.TryAdvisoryLock(ctx, key)
			if lockErr != nil {
				return lockErr
			}
			if !acquired {
				return errors.New("另一个回填任务持有 advisory lock，稍后重试")
			}
			defer unlock()
		}
	}

	source := a.newSource()

	processed := 0
	skipped := 0
	failed := 0
	for height := opts.FromHeight; height <= opts.ToHeight; height++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := source.HeaderByNumber(ctx, height)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Uint64("height", height).Msg("回填失败")
			continue
		}

		rec, ok := chain.DeriveRecord(header)
		if !ok {
			skipped++
			a.Logger.Debug().Uint64("height", height).Msg("哈希不含十进制数字，跳过")
			continue
		}

		if !opts.DryRun {
			if err := store.UpsertRecord(ctx, storage.FromRoadRecord(rec)); err != nil {
				failed++
				a.Logger.Error().Err(err).Uint64("height", height).Msg("回填写入失败")
				continue
			}
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("skipped", skipped).Int("failed", failed).Msg("回填完成")
	if failed > 0 {
		return errors.New("部分区块回填失败，请检查日志")
	}
	return nil
}
