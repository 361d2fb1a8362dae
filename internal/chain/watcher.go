package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bead-road-feed/internal/metrics"
	"bead-road-feed/internal/road"
)

// Sink consumes derived outcome records in non-decreasing height order.
type Sink interface {
	Accept(ctx context.Context, rec road.Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec road.Record) error

// Accept implements Sink.
func (f SinkFunc) Accept(ctx context.Context, rec road.Record) error {
	return f(ctx, rec)
}

// WatcherOptions tune the poll loop.
type WatcherOptions struct {
	Confirmations uint64
	InitialBlocks uint64
	MaxBatch      uint64
}

// Watcher walks confirmed headers upward and hands one record per block to
// its sinks. Poll matches the scheduler's tick signature; successive polls
// resume from the last emitted height, so emission order is non-decreasing.
type Watcher struct {
	source HeaderSource
	sinks  []Sink
	opts   WatcherOptions
	logger zerolog.Logger

	next    uint64
	started bool
}

// NewWatcher constructs a watcher over a header source.
func NewWatcher(source HeaderSource, opts WatcherOptions, logger zerolog.Logger, sinks ...Sink) *Watcher {
	if opts.MaxBatch == 0 {
		opts.MaxBatch = 256
	}
	return &Watcher{
		source: source,
		sinks:  sinks,
		opts:   opts,
		logger: logger.With().Str("component", "chain_watcher").Logger(),
	}
}

// Poll fetches the confirmed tip and processes the headers between the last
// emitted height and the tip, bounded by MaxBatch. The first poll warms up
// from tip − InitialBlocks.
func (w *Watcher) Poll(ctx context.Context, _ time.Time) error {
	tip, err := w.source.TipNumber(ctx)
	if err != nil {
		metrics.ChainPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch tip: %w", err)
	}

	if tip < w.opts.Confirmations {
		metrics.ChainPolls.WithLabelValues("ok").Inc()
		return nil
	}
	confirmed := tip - w.opts.Confirmations
	metrics.ChainTip.Set(float64(confirmed))

	if !w.started {
		w.next = 0
		if confirmed > w.opts.InitialBlocks {
			w.next = confirmed - w.opts.InitialBlocks
		}
		w.started = true
		w.logger.Info().Uint64("from", w.next).Uint64("confirmed", confirmed).Msg("starting header walk")
	}

	if w.next > confirmed {
		metrics.ChainPolls.WithLabelValues("ok").Inc()
		return nil
	}

	end := confirmed
	if span := end - w.next + 1; span > w.opts.MaxBatch {
		end = w.next + w.opts.MaxBatch - 1
	}

	processed := 0
	for number := w.next; number <= end; number++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := w.source.HeaderByNumber(ctx, number)
		if err != nil {
			metrics.ChainPolls.WithLabelValues("error").Inc()
			return fmt.Errorf("fetch header %d: %w", number, err)
		}

		rec, ok := DeriveRecord(header)
		if !ok {
			metrics.BlocksRejected.Inc()
			w.logger.Debug().Uint64("height", number).Str("hash", header.Hash).Msg("hash carries no decimal digit; block skipped")
			w.next = number + 1
			continue
		}

		for _, sink := range w.sinks {
			if err := sink.Accept(ctx, rec); err != nil {
				metrics.ChainPolls.WithLabelValues("error").Inc()
				return fmt.Errorf("deliver record %d: %w", number, err)
			}
		}

		metrics.BlocksProcessed.Inc()
		w.next = number + 1
		processed++
	}

	metrics.ChainPolls.WithLabelValues("ok").Inc()
	if processed > 0 {
		w.logger.Debug().Int("blocks", processed).Uint64("next", w.next).Msg("poll processed headers")
	}
	return nil
}
