// Package feed owns the live bead-road state: the raw record backlog, the
// rule-filtered window, and the two grids maintained incrementally per
// dimension. All mutation funnels through one loop goroutine so rule
// switches never race in-flight insertions.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bead-road-feed/internal/metrics"
	"bead-road-feed/internal/road"
)

var (
	// ErrUnknownRule indicates a switch request for an unconfigured rule id.
	ErrUnknownRule = errors.New("feed: unknown rule id")
	// ErrStopped indicates the feed loop is no longer running.
	ErrStopped = errors.New("feed: stopped")
)

// EventType discriminates subscriber events.
type EventType string

const (
	// EventRecord is emitted for every record accepted into the window.
	EventRecord EventType = "record"
	// EventSnapshot is emitted after a rule switch replaces the window.
	EventSnapshot EventType = "snapshot"
)

// Event is delivered to feed subscribers.
type Event struct {
	Type     EventType     `json:"type"`
	Record   *road.Record  `json:"record,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Summary  *EventSummary `json:"summary,omitempty"`
}

// EventSummary carries the window length alongside record events so
// consumers need not re-query.
type EventSummary struct {
	Seq        uint64 `json:"seq"`
	WindowSize int    `json:"windowSize"`
}

// Snapshot is a consistent view of the feed state, captured inside the loop.
type Snapshot struct {
	Seq     uint64        `json:"seq"`
	Rule    road.Rule     `json:"rule"`
	Layout  road.Layout   `json:"layout"`
	Records []road.Record `json:"records"`
	Parity  road.Grid     `json:"parity"`
	Size    road.Grid     `json:"size"`
}

// Options configure the feed.
type Options struct {
	Layout           road.Layout
	BacklogCapacity  int
	Rules            []road.Rule
	DefaultRuleID    string
	SubscriberBuffer int
}

// Subscription hands a subscriber its event channel. The channel is closed
// when the subscriber is dropped or the feed stops.
type Subscription struct {
	ID     uuid.UUID
	Events <-chan Event
}

type switchReq struct {
	id    string
	reply chan switchResp
}

type switchResp struct {
	snapshot Snapshot
	err      error
}

type subReq struct {
	reply chan Subscription
}

// Feed serializes all window and grid mutation through its Run loop.
type Feed struct {
	opts   Options
	logger zerolog.Logger

	ingestCh chan road.Record
	switchCh chan switchReq
	snapCh   chan chan Snapshot
	subCh    chan subReq
	unsubCh  chan uuid.UUID
	done     chan struct{}

	// loop-owned state, never touched outside Run
	rule    road.Rule
	layout  road.Layout
	window  *road.Window
	parity  road.Grid
	size    road.Grid
	backlog []road.Record
	seq     uint64
	rules   map[string]road.Rule
	subs    map[uuid.UUID]chan Event
}

// New constructs a feed. Presets are normalized; the default rule id must be
// among them (config validation guarantees this, an all-heights rule is the
// fallback).
func New(opts Options, logger zerolog.Logger) *Feed {
	if opts.BacklogCapacity <= 0 {
		opts.BacklogCapacity = 4096
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	opts.Layout = opts.Layout.Normalize()

	// Normalize on a copy: the caller keeps ownership of its preset slice.
	presets := make([]road.Rule, len(opts.Rules))
	rules := make(map[string]road.Rule, len(opts.Rules))
	for i, rule := range opts.Rules {
		presets[i] = rule.Normalize()
		rules[rule.ID] = presets[i]
	}
	opts.Rules = presets
	active, ok := rules[opts.DefaultRuleID]
	if !ok {
		active = road.Rule{ID: "all", Label: "Every block", Step: 1}
		rules[active.ID] = active
		opts.Rules = append(opts.Rules, active)
	}

	return &Feed{
		opts:     opts,
		logger:   logger.With().Str("component", "feed").Logger(),
		ingestCh: make(chan road.Record, 256),
		switchCh: make(chan switchReq),
		snapCh:   make(chan chan Snapshot),
		subCh:    make(chan subReq),
		unsubCh:  make(chan uuid.UUID),
		done:     make(chan struct{}),
		rule:     active,
		rules:    rules,
		backlog:  make([]road.Record, 0, opts.BacklogCapacity),
		subs:     make(map[uuid.UUID]chan Event),
	}
}

// Rules lists the configured presets in their configured order.
func (f *Feed) Rules() []road.Rule {
	out := make([]road.Rule, len(f.opts.Rules))
	copy(out, f.opts.Rules)
	return out
}

// Run executes the feed loop until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.done)
	defer f.closeSubscribers()

	f.applyRule(f.rule)
	f.logger.Info().Str("rule", f.rule.ID).
		Int("capacity", f.window.Capacity()).
		Msg("feed loop started")

	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("feed loop stopped")
			return ctx.Err()
		case rec := <-f.ingestCh:
			f.handleIngest(rec)
		case req := <-f.switchCh:
			rule, ok := f.rules[req.id]
			if !ok {
				req.reply <- switchResp{err: fmt.Errorf("%w: %s", ErrUnknownRule, req.id)}
				continue
			}
			f.rule = rule
			f.applyRule(rule)
			req.reply <- switchResp{snapshot: f.snapshot()}
		case reply := <-f.snapCh:
			reply <- f.snapshot()
		case req := <-f.subCh:
			id := uuid.New()
			ch := make(chan Event, f.opts.SubscriberBuffer)
			f.subs[id] = ch
			metrics.Subscribers.Set(float64(len(f.subs)))
			req.reply <- Subscription{ID: id, Events: ch}
		case id := <-f.unsubCh:
			if ch, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(ch)
				metrics.Subscribers.Set(float64(len(f.subs)))
			}
		}
	}
}

// Ingest offers a record to the feed. Malformed records are rejected here
// and never reach the loop; misaligned and duplicate records are absorbed
// silently inside it.
func (f *Feed) Ingest(ctx context.Context, rec road.Record) error {
	if err := rec.Validate(); err != nil {
		metrics.RecordsIngested.WithLabelValues("malformed").Inc()
		f.logger.Debug().Err(err).Uint64("height", rec.Height).Msg("record rejected at ingress")
		return nil
	}
	select {
	case f.ingestCh <- rec:
		return nil
	case <-f.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SwitchRule activates a configured rule and returns the rebuilt snapshot.
func (f *Feed) SwitchRule(ctx context.Context, id string) (Snapshot, error) {
	req := switchReq{id: id, reply: make(chan switchResp, 1)}
	select {
	case f.switchCh <- req:
	case <-f.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.snapshot, resp.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Snapshot captures a consistent view of the feed state.
func (f *Feed) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case f.snapCh <- reply:
	case <-f.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Subscribe registers an event consumer.
func (f *Feed) Subscribe(ctx context.Context) (Subscription, error) {
	req := subReq{reply: make(chan Subscription, 1)}
	select {
	case f.subCh <- req:
	case <-f.done:
		return Subscription{}, ErrStopped
	case <-ctx.Done():
		return Subscription{}, ctx.Err()
	}
	select {
	case sub := <-req.reply:
		return sub, nil
	case <-ctx.Done():
		return Subscription{}, ctx.Err()
	}
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(id uuid.UUID) {
	select {
	case f.unsubCh <- id:
	case <-f.done:
	}
}

func (f *Feed) handleIngest(rec road.Record) {
	f.backlog = append(f.backlog, rec)
	if len(f.backlog) > f.opts.BacklogCapacity {
		f.backlog = f.backlog[len(f.backlog)-f.opts.BacklogCapacity:]
	}

	if !f.rule.Aligned(rec.Height) {
		metrics.RecordsIngested.WithLabelValues("misaligned").Inc()
		return
	}
	if !f.window.Insert(rec) {
		metrics.RecordsIngested.WithLabelValues("duplicate").Inc()
		return
	}

	f.parity = road.Slide(f.parity, rec, road.DimensionParity)
	f.size = road.Slide(f.size, rec, road.DimensionSize)
	f.seq++
	metrics.RecordsIngested.WithLabelValues("accepted").Inc()
	metrics.WindowSize.Set(float64(f.window.Len()))

	event := Event{
		Type:    EventRecord,
		Record:  &rec,
		Summary: &EventSummary{Seq: f.seq, WindowSize: f.window.Len()},
	}
	f.broadcast(event)
}

// applyRule rebuilds the window and grids from the raw backlog under the
// given rule. Runs inside the loop; observers only ever see the state before
// or after.
func (f *Feed) applyRule(rule road.Rule) {
	f.layout = rule.LayoutFor(f.opts.Layout)
	f.window = road.NewWindow(f.layout.Capacity())
	f.window.Rebuild(f.backlog, rule)
	records := f.window.Snapshot()
	f.parity = road.Project(records, road.DimensionParity, f.layout)
	f.size = road.Project(records, road.DimensionSize, f.layout)
	f.seq++

	metrics.RuleSwitches.Inc()
	metrics.WindowSize.Set(float64(f.window.Len()))
	f.logger.Info().Str("rule", rule.ID).
		Int("window", f.window.Len()).
		Int("backlog", len(f.backlog)).
		Msg("rule applied")

	snap := f.snapshot()
	f.broadcast(Event{Type: EventSnapshot, Snapshot: &snap})
}

func (f *Feed) snapshot() Snapshot {
	return Snapshot{
		Seq:     f.seq,
		Rule:    f.rule,
		Layout:  f.layout,
		Records: f.window.Snapshot(),
		Parity:  f.parity,
		Size:    f.size,
	}
}

// broadcast delivers an event without ever blocking the loop: a subscriber
// whose buffer is full is dropped.
func (f *Feed) broadcast(event Event) {
	for id, ch := range f.subs {
		select {
		case ch <- event:
		default:
			delete(f.subs, id)
			close(ch)
			metrics.DroppedSubscribers.Inc()
			metrics.Subscribers.Set(float64(len(f.subs)))
			f.logger.Warn().Str("subscriber", id.String()).Msg("slow subscriber dropped")
		}
	}
}

func (f *Feed) closeSubscribers() {
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	metrics.Subscribers.Set(0)
}
