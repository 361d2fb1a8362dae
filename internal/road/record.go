// Package road implements the bead-road core: outcome records derived from
// blocks, sampling rules, the capacity-bounded window of aligned records, and
// its column-major grid projection.
package road

import (
	"fmt"
	"time"
)

// Parity labels the odd/even outcome of a result value.
type Parity string

// Size labels the big/small outcome of a result value.
type Size string

const (
	ParityOdd  Parity = "ODD"
	ParityEven Parity = "EVEN"

	SizeBig   Size = "BIG"
	SizeSmall Size = "SMALL"
)

// bigFrom is the smallest result value classified as BIG.
const bigFrom = 5

// ParityOf returns the parity outcome for a result value.
func ParityOf(value int) Parity {
	if value%2 == 0 {
		return ParityEven
	}
	return ParityOdd
}

// SizeOf returns the size outcome for a result value.
func SizeOf(value int) Size {
	if value >= bigFrom {
		return SizeBig
	}
	return SizeSmall
}

// Record is a single immutable outcome observation derived from one block,
// identified by its height.
type Record struct {
	Height    uint64    `json:"height"`
	Hash      string    `json:"hash"`
	Value     int       `json:"resultValue"`
	Parity    Parity    `json:"type"`
	Size      Size      `json:"sizeType"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the ingress contract: result value in [0,9] and both
// outcome labels members of their enums. Records failing validation must be
// dropped before they reach a window.
func (r Record) Validate() error {
	if r.Value < 0 || r.Value > 9 {
		return fmt.Errorf("result value %d out of range [0,9]", r.Value)
	}
	switch r.Parity {
	case ParityOdd, ParityEven:
	default:
		return fmt.Errorf("unknown parity %q", r.Parity)
	}
	switch r.Size {
	case SizeBig, SizeSmall:
	default:
		return fmt.Errorf("unknown size %q", r.Size)
	}
	return nil
}
