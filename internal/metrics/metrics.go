// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngested counts records offered to the feed by outcome.
	// Labels: status (accepted, misaligned, duplicate, malformed)
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "feed",
		Name:      "records_total",
		Help:      "Records offered to the feed by ingestion outcome",
	}, []string{"status"})

	// RuleSwitches counts active-rule switches including the initial load.
	RuleSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "feed",
		Name:      "rule_switches_total",
		Help:      "Active sampling rule switches",
	})

	// WindowSize tracks the current number of aligned records retained.
	WindowSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beadroad",
		Subsystem: "feed",
		Name:      "window_size",
		Help:      "Aligned records currently held in the window",
	})

	// Subscribers tracks live feed subscribers.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beadroad",
		Subsystem: "feed",
		Name:      "subscribers",
		Help:      "Active feed subscribers",
	})

	// DroppedSubscribers counts subscribers removed for falling behind.
	DroppedSubscribers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "feed",
		Name:      "dropped_subscribers_total",
		Help:      "Subscribers dropped by the slow-consumer policy",
	})

	// ChainPolls counts watcher poll executions.
	// Labels: status (ok, error)
	ChainPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "chain",
		Name:      "polls_total",
		Help:      "Chain poll executions by result",
	}, []string{"status"})

	// BlocksProcessed counts headers turned into outcome records.
	BlocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "chain",
		Name:      "blocks_processed_total",
		Help:      "Block headers converted into outcome records",
	})

	// BlocksRejected counts headers whose hash carried no decimal digit.
	BlocksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "chain",
		Name:      "blocks_rejected_total",
		Help:      "Block headers rejected during outcome derivation",
	})

	// ChainTip tracks the last confirmed height observed.
	ChainTip = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beadroad",
		Subsystem: "chain",
		Name:      "confirmed_tip",
		Help:      "Last confirmed chain height observed by the watcher",
	})

	// WSClients tracks connected websocket dashboard clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beadroad",
		Subsystem: "server",
		Name:      "ws_clients",
		Help:      "Connected websocket clients",
	})

	// DragonAlerts counts dispatched dragon notifications by streak kind.
	// Labels: kind (parity, size)
	DragonAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beadroad",
		Subsystem: "alerting",
		Name:      "dragon_alerts_total",
		Help:      "Dragon streak notifications dispatched",
	}, []string{"kind"})
)
