package road

// Rule is a sampling policy: a record is taken into the window only when its
// block height lands on the rule's step/offset lattice. At most one rule is
// active at a time; switching rules rebuilds the window.
type Rule struct {
	ID              string `json:"id" mapstructure:"id"`
	Label           string `json:"label" mapstructure:"label"`
	Step            int64  `json:"step" mapstructure:"step"`
	Offset          int64  `json:"offset" mapstructure:"offset"`
	TrendRows       int    `json:"trendRows" mapstructure:"trend_rows"`
	BeadRows        int    `json:"beadRows" mapstructure:"bead_rows"`
	DragonThreshold int    `json:"dragonThreshold" mapstructure:"dragon_threshold"`
}

// Normalize clamps invalid sampling parameters to safe defaults: step below 1
// becomes 1, negative offset becomes 0. Never an error.
func (r Rule) Normalize() Rule {
	if r.Step <= 0 {
		r.Step = 1
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}

// Aligned reports whether a block height satisfies the rule's sampling
// lattice. Pure and total: the same (height, rule) pair always yields the
// same answer, so re-filtering a backlog reproduces exactly the aligned set
// that incremental filtering would have produced.
func (r Rule) Aligned(height uint64) bool {
	r = r.Normalize()
	if r.Step <= 1 {
		return true
	}
	step := uint64(r.Step)
	if r.Offset > 0 {
		offset := uint64(r.Offset)
		return height >= offset && (height-offset)%step == 0
	}
	return height%step == 0
}

// LayoutFor returns the grid layout the rule projects into: the rule's
// bead_rows overrides the base row count when positive.
func (r Rule) LayoutFor(base Layout) Layout {
	base = base.Normalize()
	if r.BeadRows > 0 {
		base.Rows = r.BeadRows
	}
	return base
}
