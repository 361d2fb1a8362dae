package road

import "sort"

// Window is the capacity-bounded collection of rule-aligned records, kept
// strictly descending by height (index 0 is the newest). Invariants held
// after every operation: length never exceeds the capacity, heights are
// strictly descending, heights are unique, and every element was aligned to
// the rule that fed the window.
//
// Window is not safe for concurrent use; the feed loop is its single writer.
type Window struct {
	capacity int
	records  []Record
}

// NewWindow builds an empty window. Non-positive capacity falls back to the
// canonical layout's capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultLayout.Capacity()
	}
	return &Window{capacity: capacity, records: make([]Record, 0, capacity)}
}

// Capacity returns the maximum number of records retained.
func (w *Window) Capacity() int {
	return w.capacity
}

// Len returns the current number of records.
func (w *Window) Len() int {
	return len(w.records)
}

// Contains reports whether a record with the given height is present.
func (w *Window) Contains(height uint64) bool {
	for _, rec := range w.records {
		if rec.Height == height {
			return true
		}
	}
	return false
}

// Insert places a newly observed aligned record at the head and evicts the
// smallest heights beyond capacity. Duplicate heights are a silent no-op.
// The caller guarantees non-decreasing arrival order; alignment to the
// active rule is checked before this call.
func (w *Window) Insert(rec Record) bool {
	if w.Contains(rec.Height) {
		return false
	}
	w.records = append(w.records, Record{})
	copy(w.records[1:], w.records)
	w.records[0] = rec
	if len(w.records) > w.capacity {
		w.records = w.records[:w.capacity]
	}
	return true
}

// Rebuild replaces the window contents from a backlog under a rule: filter
// by alignment, drop duplicate heights, sort descending, keep the capacity
// highest heights. Used on rule switch and initial load; the replacement is
// atomic from the caller's perspective.
func (w *Window) Rebuild(backlog []Record, rule Rule) {
	seen := make(map[uint64]struct{}, len(backlog))
	filtered := make([]Record, 0, w.capacity)
	for _, rec := range backlog {
		if !rule.Aligned(rec.Height) {
			continue
		}
		if _, dup := seen[rec.Height]; dup {
			continue
		}
		seen[rec.Height] = struct{}{}
		filtered = append(filtered, rec)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Height > filtered[j].Height
	})
	if len(filtered) > w.capacity {
		filtered = filtered[:w.capacity]
	}
	w.records = filtered
}

// Snapshot returns a copy of the window contents, newest first.
func (w *Window) Snapshot() []Record {
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// Oldest returns the smallest retained height, or false when empty.
func (w *Window) Oldest() (Record, bool) {
	if len(w.records) == 0 {
		return Record{}, false
	}
	return w.records[len(w.records)-1], true
}
