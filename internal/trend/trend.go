// Package trend derives summary statistics from windowed outcome records:
// per-value histograms, parity/size ratios, and current streaks. All
// functions are pure and expect newest-first input, matching the window
// snapshot order.
package trend

import (
	"github.com/shopspring/decimal"

	"bead-road-feed/internal/road"
)

// ratioPlaces is the decimal precision of reported ratios.
const ratioPlaces = 4

// Streak is the current run of equal outcomes, counted from the newest
// record backwards.
type Streak struct {
	Kind   string `json:"kind"`
	Length int    `json:"length"`
}

// Summary aggregates a record slice for the summary endpoint, the dragon
// alerter, and the export chart series.
type Summary struct {
	Total      int             `json:"total"`
	Histogram  [10]int         `json:"histogram"`
	OddCount   int             `json:"oddCount"`
	EvenCount  int             `json:"evenCount"`
	BigCount   int             `json:"bigCount"`
	SmallCount int             `json:"smallCount"`
	OddRatio   decimal.Decimal `json:"oddRatio"`
	EvenRatio  decimal.Decimal `json:"evenRatio"`
	BigRatio   decimal.Decimal `json:"bigRatio"`
	SmallRatio decimal.Decimal `json:"smallRatio"`
	Parity     Streak          `json:"parityStreak"`
	Size       Streak          `json:"sizeStreak"`
}

// Summarize computes a Summary over newest-first records.
func Summarize(records []road.Record) Summary {
	s := Summary{Total: len(records)}
	for _, rec := range records {
		if rec.Value >= 0 && rec.Value <= 9 {
			s.Histogram[rec.Value]++
		}
		if rec.Parity == road.ParityOdd {
			s.OddCount++
		} else {
			s.EvenCount++
		}
		if rec.Size == road.SizeBig {
			s.BigCount++
		} else {
			s.SmallCount++
		}
	}

	total := decimal.NewFromInt(int64(s.Total))
	s.OddRatio = ratio(s.OddCount, total)
	s.EvenRatio = ratio(s.EvenCount, total)
	s.BigRatio = ratio(s.BigCount, total)
	s.SmallRatio = ratio(s.SmallCount, total)

	s.Parity = parityStreak(records)
	s.Size = sizeStreak(records)
	return s
}

func ratio(count int, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(count)).DivRound(total, ratioPlaces)
}

func parityStreak(records []road.Record) Streak {
	if len(records) == 0 {
		return Streak{}
	}
	kind := records[0].Parity
	length := 0
	for _, rec := range records {
		if rec.Parity != kind {
			break
		}
		length++
	}
	return Streak{Kind: string(kind), Length: length}
}

func sizeStreak(records []road.Record) Streak {
	if len(records) == 0 {
		return Streak{}
	}
	kind := records[0].Size
	length := 0
	for _, rec := range records {
		if rec.Size != kind {
			break
		}
		length++
	}
	return Streak{Kind: string(kind), Length: length}
}
