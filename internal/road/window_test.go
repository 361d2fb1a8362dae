package road

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func makeRecord(height uint64) Record {
	value := int(height % 10)
	return Record{
		Height:    height,
		Hash:      fmt.Sprintf("0x%064x", height),
		Value:     value,
		Parity:    ParityOf(value),
		Size:      SizeOf(value),
		Timestamp: time.Unix(int64(height), 0).UTC(),
	}
}

func makeBacklog(from, to uint64) []Record {
	records := make([]Record, 0, to-from+1)
	for h := from; h <= to; h++ {
		records = append(records, makeRecord(h))
	}
	return records
}

func checkInvariants(t *testing.T, w *Window, rule Rule) {
	t.Helper()
	records := w.Snapshot()
	if len(records) > w.Capacity() {
		t.Fatalf("I1 违例: 长度 %d 超过容量 %d", len(records), w.Capacity())
	}
	seen := make(map[uint64]struct{}, len(records))
	for i, rec := range records {
		if i > 0 && records[i-1].Height <= rec.Height {
			t.Fatalf("I2 违例: 高度应严格递减, [%d]=%d [%d]=%d", i-1, records[i-1].Height, i, rec.Height)
		}
		if !rule.Aligned(rec.Height) {
			t.Fatalf("I3 违例: 高度 %d 不满足当前规则", rec.Height)
		}
		if _, dup := seen[rec.Height]; dup {
			t.Fatalf("I4 违例: 高度 %d 重复", rec.Height)
		}
		seen[rec.Height] = struct{}{}
	}
}

func TestWindowInsertOrderAndDuplicate(t *testing.T) {
	w := NewWindow(10)
	rule := Rule{Step: 1}

	for h := uint64(1); h <= 5; h++ {
		if !w.Insert(makeRecord(h)) {
			t.Fatalf("插入高度 %d 应成功", h)
		}
	}
	if w.Insert(makeRecord(3)) {
		t.Fatal("重复高度应为 no-op")
	}
	if w.Len() != 5 {
		t.Fatalf("期望长度 5, 实际 %d", w.Len())
	}
	if got := w.Snapshot()[0].Height; got != 5 {
		t.Fatalf("索引 0 应为最新高度 5, 实际 %d", got)
	}
	checkInvariants(t, w, rule)
}

func TestWindowEvictsSmallestHeight(t *testing.T) {
	w := NewWindow(4)
	for h := uint64(1); h <= 4; h++ {
		w.Insert(makeRecord(h))
	}
	oldest, ok := w.Oldest()
	if !ok || oldest.Height != 1 {
		t.Fatalf("最旧高度应为 1, 实际 %+v", oldest)
	}

	w.Insert(makeRecord(5))
	if w.Len() != 4 {
		t.Fatalf("超容插入后长度应保持 4, 实际 %d", w.Len())
	}
	if w.Contains(1) {
		t.Fatal("应恰好淘汰最小高度 1")
	}
	for h := uint64(2); h <= 5; h++ {
		if !w.Contains(h) {
			t.Fatalf("高度 %d 不应被淘汰", h)
		}
	}
}

func TestWindowRebuildFiltersSortsTruncates(t *testing.T) {
	w := NewWindow(3)
	rule := Rule{Step: 2}

	backlog := []Record{
		makeRecord(7), makeRecord(2), makeRecord(10),
		makeRecord(4), makeRecord(4), makeRecord(8), makeRecord(6),
	}
	w.Rebuild(backlog, rule)
	checkInvariants(t, w, rule)

	records := w.Snapshot()
	if len(records) != 3 {
		t.Fatalf("期望保留 3 条, 实际 %d", len(records))
	}
	for i, want := range []uint64{10, 8, 6} {
		if records[i].Height != want {
			t.Fatalf("索引 %d 期望高度 %d, 实际 %d", i, want, records[i].Height)
		}
	}
}

func TestWindowRebuildDeterministic(t *testing.T) {
	backlog := makeBacklog(1, 500)
	rule := Rule{Step: 3, Offset: 1}

	a := NewWindow(50)
	b := NewWindow(50)
	a.Rebuild(backlog, rule)
	b.Rebuild(backlog, rule)

	sa, sb := a.Snapshot(), b.Snapshot()
	if len(sa) != len(sb) {
		t.Fatalf("两次 rebuild 长度不一致: %d vs %d", len(sa), len(sb))
	}
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("索引 %d 不一致: %+v vs %+v", i, sa[i], sb[i])
		}
	}
}

// 规范场景: 高度 1..265, step=1, 44×6 ⇒ 保留 2..265, 高度 1 被淘汰。
func TestWindowCanonicalScenario(t *testing.T) {
	rule := Rule{Step: 1}
	w := NewWindow(DefaultLayout.Capacity())
	w.Rebuild(makeBacklog(1, 265), rule)

	if w.Len() != 264 {
		t.Fatalf("期望 264 条, 实际 %d", w.Len())
	}
	if w.Contains(1) {
		t.Fatal("高度 1 应被淘汰")
	}
	records := w.Snapshot()
	if records[0].Height != 265 || records[263].Height != 2 {
		t.Fatalf("期望范围 [265..2], 实际 [%d..%d]", records[0].Height, records[263].Height)
	}
	checkInvariants(t, w, rule)
}

// 随机混合 insert/rebuild 序列后不变量仍然成立。
func TestWindowInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rule := Rule{Step: 1}
	w := NewWindow(30)

	height := uint64(0)
	backlog := make([]Record, 0, 512)
	for i := 0; i < 400; i++ {
		switch rng.Intn(10) {
		case 0:
			rule = Rule{Step: rng.Int63n(5), Offset: rng.Int63n(7)}
			w.Rebuild(backlog, rule)
		case 1:
			// 上游按高度去重, 重复投递
			if height > 0 && w.Contains(height) {
				w.Insert(makeRecord(height))
			}
		default:
			height += uint64(1 + rng.Intn(3))
			rec := makeRecord(height)
			backlog = append(backlog, rec)
			if rule.Aligned(height) {
				w.Insert(rec)
			}
		}
		checkInvariants(t, w, rule)
	}
}
