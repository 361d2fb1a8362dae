// Package alerting dispatches dragon-streak notifications: when the window's
// current run of equal outcomes reaches the active rule's threshold, the
// configured channels are notified.
package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bead-road-feed/internal/feed"
	"bead-road-feed/internal/metrics"
	"bead-road-feed/internal/road"
	"bead-road-feed/internal/trend"
)

const (
	// KindParity labels ODD/EVEN streaks.
	KindParity = "parity"
	// KindSize labels BIG/SMALL streaks.
	KindSize = "size"
)

// DragonOptions tune notification pacing.
type DragonOptions struct {
	Cooldown time.Duration
	Channels []string
}

type streak struct {
	outcome  string
	length   int
	lastSent time.Time
}

// DragonWatcher consumes feed events and raises a notification when a streak
// reaches the active rule's dragon threshold. While the same streak keeps
// growing, repeats are paced by the cooldown. Notification failures are
// logged and never affect the feed.
type DragonWatcher struct {
	feed     *feed.Feed
	notifier Notifier
	opts     DragonOptions
	logger   zerolog.Logger

	rule       road.Rule
	parity     streak
	size       streak
	lastHeight uint64
}

// NewDragonWatcher builds a watcher over a running feed.
func NewDragonWatcher(f *feed.Feed, notifier Notifier, opts DragonOptions, logger zerolog.Logger) *DragonWatcher {
	return &DragonWatcher{
		feed:     f,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "dragon_watcher").Logger(),
	}
}

// Run subscribes to the feed and evaluates streaks until ctx is cancelled.
// Subscription happens before the initial snapshot so no record falls
// between the two; the height guard in advance dedupes the overlap.
func (d *DragonWatcher) Run(ctx context.Context) error {
	sub, err := d.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() { d.feed.Unsubscribe(sub.ID) }()

	snap, err := d.feed.Snapshot(ctx)
	if err != nil {
		return err
	}
	d.applySnapshot(ctx, snap)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.Events:
			if !ok {
				// dropped by the slow-consumer policy; resync via snapshot
				sub, err = d.feed.Subscribe(ctx)
				if err != nil {
					return err
				}
				snap, err := d.feed.Snapshot(ctx)
				if err != nil {
					return err
				}
				d.applySnapshot(ctx, snap)
				continue
			}
			d.handleEvent(ctx, event)
		}
	}
}

func (d *DragonWatcher) handleEvent(ctx context.Context, event feed.Event) {
	switch event.Type {
	case feed.EventSnapshot:
		if event.Snapshot != nil {
			d.applySnapshot(ctx, *event.Snapshot)
		}
	case feed.EventRecord:
		if event.Record != nil {
			d.advance(ctx, *event.Record)
		}
	}
}

// applySnapshot resyncs streak state after a rule switch or initial load.
func (d *DragonWatcher) applySnapshot(ctx context.Context, snap feed.Snapshot) {
	d.rule = snap.Rule
	summary := trend.Summarize(snap.Records)
	d.parity = streak{outcome: summary.Parity.Kind, length: summary.Parity.Length}
	d.size = streak{outcome: summary.Size.Kind, length: summary.Size.Length}

	var latest uint64
	var observed time.Time
	if len(snap.Records) > 0 {
		latest = snap.Records[0].Height
		observed = snap.Records[0].Timestamp
	}
	d.lastHeight = latest
	d.evaluate(ctx, KindParity, &d.parity, latest, observed)
	d.evaluate(ctx, KindSize, &d.size, latest, observed)
}

func (d *DragonWatcher) advance(ctx context.Context, rec road.Record) {
	if rec.Height <= d.lastHeight {
		return
	}
	d.lastHeight = rec.Height
	updateStreak(&d.parity, string(rec.Parity))
	updateStreak(&d.size, string(rec.Size))
	d.evaluate(ctx, KindParity, &d.parity, rec.Height, rec.Timestamp)
	d.evaluate(ctx, KindSize, &d.size, rec.Height, rec.Timestamp)
}

func updateStreak(s *streak, outcome string) {
	if s.outcome == outcome {
		s.length++
		return
	}
	*s = streak{outcome: outcome, length: 1}
}

func (d *DragonWatcher) evaluate(ctx context.Context, kind string, s *streak, height uint64, observed time.Time) {
	threshold := d.rule.DragonThreshold
	if threshold <= 0 || d.notifier == nil {
		return
	}
	if s.length < threshold {
		return
	}
	grown := s.length > threshold
	if grown && time.Since(s.lastSent) < d.opts.Cooldown {
		return
	}
	if !grown && !s.lastSent.IsZero() {
		// threshold 命中已经通知过 (快照重放)
		return
	}

	note := Notification{
		Kind:         kind,
		Outcome:      s.outcome,
		Length:       s.length,
		Threshold:    threshold,
		RuleID:       d.rule.ID,
		RuleLabel:    d.rule.Label,
		LatestHeight: height,
		ObservedAt:   observed,
		Channels:     d.opts.Channels,
	}
	if err := d.notifier.Notify(ctx, note); err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Str("outcome", s.outcome).Msg("dragon 告警发送失败")
		return
	}
	s.lastSent = time.Now()
	metrics.DragonAlerts.WithLabelValues(kind).Inc()
}
