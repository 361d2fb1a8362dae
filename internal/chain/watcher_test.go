package chain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bead-road-feed/internal/road"
)

// staticSource 以固定高度序列模拟链端。
type staticSource struct {
	tip    uint64
	hashes map[uint64]string
}

func (s *staticSource) TipNumber(ctx context.Context) (uint64, error) {
	return s.tip, nil
}

func (s *staticSource) HeaderByNumber(ctx context.Context, number uint64) (Header, error) {
	hash, ok := s.hashes[number]
	if !ok {
		hash = fmt.Sprintf("0x%063x%d", number, number%10)
	}
	return Header{Number: number, Hash: hash, Time: time.Unix(int64(number), 0)}, nil
}

var _ HeaderSource = (*staticSource)(nil)

type collectSink struct {
	records []road.Record
}

func (c *collectSink) Accept(ctx context.Context, rec road.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func TestWatcherWarmupAndOrder(t *testing.T) {
	source := &staticSource{tip: 110}
	sink := &collectSink{}
	w := NewWatcher(source, WatcherOptions{Confirmations: 10, InitialBlocks: 5}, zerolog.Nop(), sink)

	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}

	// confirmed=100, warmup 从 95 开始
	if len(sink.records) != 6 {
		t.Fatalf("期望 6 条记录 (95..100), 实际 %d", len(sink.records))
	}
	for i, rec := range sink.records {
		if want := uint64(95 + i); rec.Height != want {
			t.Fatalf("第 %d 条期望高度 %d, 实际 %d", i, want, rec.Height)
		}
	}
}

func TestWatcherResumesWithoutReplay(t *testing.T) {
	source := &staticSource{tip: 20}
	sink := &collectSink{}
	w := NewWatcher(source, WatcherOptions{Confirmations: 0, InitialBlocks: 2}, zerolog.Nop(), sink)

	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("首次 Poll 失败: %v", err)
	}
	first := len(sink.records)

	// 链未前进时不应重复投递
	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("二次 Poll 失败: %v", err)
	}
	if len(sink.records) != first {
		t.Fatalf("无新块时不应重复投递: %d -> %d", first, len(sink.records))
	}

	source.tip = 23
	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("三次 Poll 失败: %v", err)
	}
	if got := sink.records[len(sink.records)-1].Height; got != 23 {
		t.Fatalf("应推进到高度 23, 实际 %d", got)
	}
	if len(sink.records) != first+3 {
		t.Fatalf("应只追加 21..23 共 3 条, 实际追加 %d", len(sink.records)-first)
	}
}

func TestWatcherMaxBatchBound(t *testing.T) {
	source := &staticSource{tip: 1000}
	sink := &collectSink{}
	w := NewWatcher(source, WatcherOptions{Confirmations: 0, InitialBlocks: 500, MaxBatch: 100}, zerolog.Nop(), sink)

	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}
	if len(sink.records) != 100 {
		t.Fatalf("单次 Poll 应受 MaxBatch 约束为 100, 实际 %d", len(sink.records))
	}

	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}
	if len(sink.records) != 200 {
		t.Fatalf("第二次 Poll 应继续下一批, 实际累计 %d", len(sink.records))
	}
	if sink.records[100].Height != sink.records[99].Height+1 {
		t.Fatal("批次之间高度应连续")
	}
}

func TestWatcherSkipsDigitlessHash(t *testing.T) {
	source := &staticSource{tip: 3, hashes: map[uint64]string{2: "0xabcdef"}}
	sink := &collectSink{}
	w := NewWatcher(source, WatcherOptions{Confirmations: 0, InitialBlocks: 3}, zerolog.Nop(), sink)

	if err := w.Poll(context.Background(), time.Now()); err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}
	for _, rec := range sink.records {
		if rec.Height == 2 {
			t.Fatal("无十进制数字的区块应被跳过")
		}
	}
	if got := sink.records[len(sink.records)-1].Height; got != 3 {
		t.Fatalf("跳过后应继续推进到 3, 实际 %d", got)
	}
}
