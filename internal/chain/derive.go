// Package chain turns confirmed block headers into outcome records and
// feeds them, in height order, to the live feed and the archive.
package chain

import (
	"time"

	"bead-road-feed/internal/road"
)

// Header is the minimal view of a block header the derivation needs.
type Header struct {
	Number uint64
	Hash   string
	Time   time.Time
}

// DeriveRecord computes the outcome record for a block: the last decimal
// digit of the hex hash is the result value, parity and size follow from it.
// A hash containing no decimal digit yields ok=false and the block is
// skipped.
func DeriveRecord(header Header) (road.Record, bool) {
	value, ok := lastDecimalDigit(header.Hash)
	if !ok {
		return road.Record{}, false
	}
	return road.Record{
		Height:    header.Number,
		Hash:      header.Hash,
		Value:     value,
		Parity:    road.ParityOf(value),
		Size:      road.SizeOf(value),
		Timestamp: header.Time.UTC(),
	}, true
}

func lastDecimalDigit(hash string) (int, bool) {
	for i := len(hash) - 1; i >= 0; i-- {
		c := hash[i]
		if c >= '0' && c <= '9' {
			return int(c - '0'), true
		}
		// 跳过 0x 前缀本身
		if c == 'x' || c == 'X' {
			break
		}
	}
	return 0, false
}
