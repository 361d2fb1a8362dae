package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bead-road-feed/internal/alerting"
	"bead-road-feed/internal/road"
	"bead-road-feed/internal/trend"
)

// SimulateAlert 构造一条合成长龙并驱动真实的告警通道。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	if opts.Length <= 0 {
		return errors.New("--length 必须大于 0")
	}

	var kind string
	var value int
	switch opts.Kind {
	case "odd":
		kind, value = alerting.KindParity, 7
	case "even":
		kind, value = alerting.KindParity, 2
	case "big":
		kind, value = alerting.KindSize, 8
	case "small":
		kind, value = alerting.KindSize, 1
	default:
		return fmt.Errorf("未知的 --kind: %s (odd|even|big|small)", opts.Kind)
	}

	// 合成最新在前的记录流并复用真实的连串统计
	records := make([]road.Record, 0, opts.Length)
	base := uint64(1_000_000)
	now := time.Now().UTC()
	for i := 0; i < opts.Length; i++ {
		height := base - uint64(i)
		records = append(records, road.Record{
			Height:    height,
			Hash:      fmt.Sprintf("0x%063x%d", height, value),
			Value:     value,
			Parity:    road.ParityOf(value),
			Size:      road.SizeOf(value),
			Timestamp: now.Add(-time.Duration(i) * time.Second),
		})
	}

	summary := trend.Summarize(records)
	streak := summary.Parity
	if kind == alerting.KindSize {
		streak = summary.Size
	}

	note := alerting.Notification{
		Kind:          kind,
		Outcome:       streak.Kind,
		Length:        streak.Length,
		Threshold:     opts.Length,
		RuleID:        a.Config.Rules.Default,
		LatestHeight:  base,
		ObservedAt:    now,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "simulated",
	}
	return notifier.Notify(ctx, note)
}
