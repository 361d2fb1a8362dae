package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bead-road-feed/internal/feed"
	"bead-road-feed/internal/road"
)

type captureNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (c *captureNotifier) Notify(ctx context.Context, note Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, note)
	return nil
}

func (c *captureNotifier) snapshot() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.notes))
	copy(out, c.notes)
	return out
}

var _ Notifier = (*captureNotifier)(nil)

func oddRecord(height uint64) road.Record {
	return road.Record{
		Height:    height,
		Hash:      fmt.Sprintf("0x%063x7", height),
		Value:     7,
		Parity:    road.ParityOdd,
		Size:      road.SizeBig,
		Timestamp: time.Unix(int64(height), 0).UTC(),
	}
}

func evenRecord(height uint64) road.Record {
	return road.Record{
		Height:    height,
		Hash:      fmt.Sprintf("0x%063x2", height),
		Value:     2,
		Parity:    road.ParityEven,
		Size:      road.SizeSmall,
		Timestamp: time.Unix(int64(height), 0).UTC(),
	}
}

func startDragonFixture(t *testing.T, cooldown time.Duration) (*feed.Feed, *captureNotifier, context.Context) {
	t.Helper()
	f := feed.New(feed.Options{
		Layout:          road.Layout{Cols: 6, Rows: 6},
		BacklogCapacity: 128,
		Rules:           []road.Rule{{ID: "all", Label: "Every block", Step: 1, DragonThreshold: 3}},
		DefaultRuleID:   "all",
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(feedDone)
	}()

	notifier := &captureNotifier{}
	watcher := NewDragonWatcher(f, notifier, DragonOptions{Cooldown: cooldown, Channels: []string{"telegram"}}, zerolog.Nop())
	watcherDone := make(chan struct{})
	go func() {
		_ = watcher.Run(ctx)
		close(watcherDone)
	}()

	t.Cleanup(func() {
		cancel()
		<-watcherDone
		<-feedDone
	})
	return f, notifier, ctx
}

func waitNotes(t *testing.T, notifier *captureNotifier, want int) []Notification {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		notes := notifier.snapshot()
		if len(notes) >= want {
			return notes
		}
		select {
		case <-deadline:
			t.Fatalf("等待 %d 条告警超时, 实际 %d", want, len(notes))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDragonNotifiesAtThreshold(t *testing.T) {
	f, notifier, ctx := startDragonFixture(t, time.Hour)

	// 奇偶与大小同步成串 (ODD/BIG), 到 3 时两个维度各触发一次
	for h := uint64(1); h <= 3; h++ {
		if err := f.Ingest(ctx, oddRecord(h)); err != nil {
			t.Fatalf("Ingest 失败: %v", err)
		}
	}

	notes := waitNotes(t, notifier, 2)
	kinds := map[string]Notification{}
	for _, note := range notes {
		kinds[note.Kind] = note
	}
	parity, ok := kinds[KindParity]
	if !ok || parity.Outcome != "ODD" || parity.Length != 3 || parity.Threshold != 3 {
		t.Fatalf("奇偶告警不正确: %+v", parity)
	}
	if size, ok := kinds[KindSize]; !ok || size.Outcome != "BIG" {
		t.Fatalf("大小告警不正确: %+v", size)
	}
}

func TestDragonCooldownSuppressesRepeats(t *testing.T) {
	f, notifier, ctx := startDragonFixture(t, time.Hour)

	for h := uint64(1); h <= 6; h++ {
		if err := f.Ingest(ctx, oddRecord(h)); err != nil {
			t.Fatalf("Ingest 失败: %v", err)
		}
	}

	notes := waitNotes(t, notifier, 2)
	// 冷却一小时内, 连串 4..6 不应重复告警
	time.Sleep(50 * time.Millisecond)
	if got := len(notifier.snapshot()); got != len(notes) {
		t.Fatalf("冷却期内不应重复告警: %d -> %d", len(notes), got)
	}
}

func TestDragonResetsOnStreakBreak(t *testing.T) {
	f, notifier, ctx := startDragonFixture(t, time.Hour)

	for h := uint64(1); h <= 3; h++ {
		if err := f.Ingest(ctx, oddRecord(h)); err != nil {
			t.Fatalf("Ingest 失败: %v", err)
		}
	}
	waitNotes(t, notifier, 2)

	// 断串后重新成串应再次告警
	if err := f.Ingest(ctx, evenRecord(4)); err != nil {
		t.Fatalf("Ingest 失败: %v", err)
	}
	for h := uint64(5); h <= 7; h++ {
		if err := f.Ingest(ctx, oddRecord(h)); err != nil {
			t.Fatalf("Ingest 失败: %v", err)
		}
	}

	notes := waitNotes(t, notifier, 4)
	last := notes[len(notes)-1]
	if last.Length != 3 {
		t.Fatalf("新连串应在阈值 3 触发, 实际 %+v", last)
	}
}
