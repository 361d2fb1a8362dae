package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bead-road-feed/internal/alerting"
	"bead-road-feed/internal/chain"
	"bead-road-feed/internal/config"
	"bead-road-feed/internal/feed"
	"bead-road-feed/internal/road"
	"bead-road-feed/internal/scheduler"
	"bead-road-feed/internal/server"
	"bead-road-feed/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() chain.HeaderSource {
	return chain.NewRPCSource(chain.RPCOptions{
		RPCURL:  a.Config.Chain.RPCURL,
		Timeout: a.Config.Chain.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newFeed() *feed.Feed {
	return feed.New(feed.Options{
		Layout:           a.Config.Road.Layout(),
		BacklogCapacity:  a.Config.Road.Backlog,
		Rules:            a.Config.Rules.Presets,
		DefaultRuleID:    a.Config.Rules.Default,
		SubscriberBuffer: a.Config.Server.WS.SendQueue,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// archiveSink persists every derived record; a failed write is logged and
// never reaches the feed.
func (a *App) archiveSink(store storage.OutcomeStore) chain.Sink {
	logger := a.Logger.With().Str("component", "archive_sink").Logger()
	return chain.SinkFunc(func(ctx context.Context, rec road.Record) error {
		if err := store.UpsertRecord(ctx, storage.FromRoadRecord(rec)); err != nil {
			logger.Warn().Err(err).Uint64("height", rec.Height).Msg("archive write failed")
		}
		return nil
	})
}

// Run executes the long-running service: chain watcher, feed loop, HTTP
// server, and (when enabled) the dragon watcher under one errgroup.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; archive disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	liveFeed := a.newFeed()

	sinks := []chain.Sink{
		chain.SinkFunc(func(ctx context.Context, rec road.Record) error {
			return liveFeed.Ingest(ctx, rec)
		}),
	}
	if store != nil {
		sinks = append(sinks, a.archiveSink(store))
	}

	watcher := chain.NewWatcher(a.newSource(), chain.WatcherOptions{
		Confirmations: a.Config.Chain.Confirmations,
		InitialBlocks: a.Config.Chain.InitialBlocks,
		MaxBatch:      a.Config.Chain.MaxBatch,
	}, a.Logger, sinks...)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Chain.PollInterval,
		StartupDelay: a.Config.Chain.StartupDelay,
	}, a.Logger)

	srv := server.New(a.Config.Server, liveFeed, a.Logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return liveFeed.Run(ctx)
	})
	g.Go(func() error {
		return sched.Run(ctx, watcher.Poll)
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if a.Config.Alerting.Enabled {
		notifier := a.newNotifier()
		if notifier == nil {
			a.Logger.Warn().Msg("alerting enabled but no channel configured; dragon watcher disabled")
		} else {
			dragon := alerting.NewDragonWatcher(liveFeed, notifier, alerting.DragonOptions{
				Cooldown: a.Config.Alerting.Cooldown,
				Channels: a.Config.Alerting.Channels,
			}, a.Logger)
			g.Go(func() error {
				return dragon.Run(ctx)
			})
		}
	}

	a.Logger.Info().Msg("starting bead road service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("bead road service stopped")
	return nil
}

// ExportOptions hold parameters for exporting archived outcomes.
type ExportOptions struct {
	FromHeight *uint64
	ToHeight   *uint64
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	FromHeight uint64
	ToHeight   uint64
	DryRun     bool
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Kind   string
	Length int
}
