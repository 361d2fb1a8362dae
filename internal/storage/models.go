package storage

import (
	"time"

	"bead-road-feed/internal/road"
)

// OutcomeRecord is one archived per-block outcome row. The archive stores
// every structurally valid derived record regardless of the active sampling
// rule; window and grid state are never persisted.
type OutcomeRecord struct {
	Height      uint64
	Hash        string
	ResultValue int
	Parity      string
	Size        string
	ObservedAt  time.Time
	CreatedAt   time.Time
}

// FromRoadRecord converts a derived record into its archive row.
func FromRoadRecord(rec road.Record) OutcomeRecord {
	return OutcomeRecord{
		Height:      rec.Height,
		Hash:        rec.Hash,
		ResultValue: rec.Value,
		Parity:      string(rec.Parity),
		Size:        string(rec.Size),
		ObservedAt:  rec.Timestamp,
	}
}

// ToRoadRecord converts an archive row back into a domain record.
func (o OutcomeRecord) ToRoadRecord() road.Record {
	return road.Record{
		Height:    o.Height,
		Hash:      o.Hash,
		Value:     o.ResultValue,
		Parity:    road.Parity(o.Parity),
		Size:      road.Size(o.Size),
		Timestamp: o.ObservedAt,
	}
}
