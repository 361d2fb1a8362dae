package road

import "sort"

// Dimension selects which outcome a grid cell carries.
type Dimension string

const (
	DimensionParity Dimension = "parity"
	DimensionSize   Dimension = "size"
)

// Layout fixes the grid shape; capacity is cols × rows.
type Layout struct {
	Cols int `json:"cols" mapstructure:"cols"`
	Rows int `json:"rows" mapstructure:"rows"`
}

// DefaultLayout is the canonical bead-road shape used by the dashboard.
var DefaultLayout = Layout{Cols: 44, Rows: 6}

// Normalize substitutes the canonical dimensions for non-positive values.
func (l Layout) Normalize() Layout {
	if l.Cols <= 0 {
		l.Cols = DefaultLayout.Cols
	}
	if l.Rows <= 0 {
		l.Rows = DefaultLayout.Rows
	}
	return l
}

// Capacity is the number of cells, and therefore the window bound.
func (l Layout) Capacity() int {
	l = l.Normalize()
	return l.Cols * l.Rows
}

// Cell is one grid slot. An empty cell has Type "".
type Cell struct {
	Type        string `json:"type,omitempty"`
	Value       int    `json:"value,omitempty"`
	BlockHeight uint64 `json:"blockHeight,omitempty"`
}

// Empty reports whether the cell holds no record.
func (c Cell) Empty() bool {
	return c.Type == ""
}

// Grid is the fixed column-major cell matrix: Cells[col][row], filled
// oldest to newest, left to right, top to bottom within a column. Grids are
// derived values; Project and Slide return fresh copies and never mutate
// their inputs.
type Grid struct {
	Cols  int      `json:"cols"`
	Rows  int      `json:"rows"`
	Cells [][]Cell `json:"cells"`
}

// NewGrid returns an all-empty grid for the layout.
func NewGrid(layout Layout) Grid {
	layout = layout.Normalize()
	cells := make([][]Cell, layout.Cols)
	for c := range cells {
		cells[c] = make([]Cell, layout.Rows)
	}
	return Grid{Cols: layout.Cols, Rows: layout.Rows, Cells: cells}
}

func (g Grid) clone() Grid {
	out := Grid{Cols: g.Cols, Rows: g.Rows, Cells: make([][]Cell, len(g.Cells))}
	for c := range g.Cells {
		col := make([]Cell, len(g.Cells[c]))
		copy(col, g.Cells[c])
		out.Cells[c] = col
	}
	return out
}

// firstEmpty returns the first empty slot in column-major fill order.
func (g Grid) firstEmpty() (int, int, bool) {
	for c := 0; c < g.Cols; c++ {
		for r := 0; r < g.Rows; r++ {
			if g.Cells[c][r].Empty() {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

func cellFor(rec Record, dim Dimension) Cell {
	cell := Cell{Value: rec.Value, BlockHeight: rec.Height}
	if dim == DimensionSize {
		cell.Type = string(rec.Size)
	} else {
		cell.Type = string(rec.Parity)
	}
	return cell
}

// Project is the batch projection: reorder the records chronologically
// ascending, keep the newest cols×rows, and place chronological index idx at
// column idx/rows, row idx%rows. Pure and deterministic; prior grid state
// never influences the result.
func Project(records []Record, dim Dimension, layout Layout) Grid {
	layout = layout.Normalize()
	grid := NewGrid(layout)
	if len(records) == 0 {
		return grid
	}

	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Height < ordered[j].Height
	})

	if capacity := layout.Capacity(); len(ordered) > capacity {
		ordered = ordered[len(ordered)-capacity:]
	}

	for idx, rec := range ordered {
		grid.Cells[idx/layout.Rows][idx%layout.Rows] = cellFor(rec, dim)
	}
	return grid
}

// Slide is the incremental projection used for live single-record updates:
// place the record at the first empty slot in column-major order; when the
// grid is full, evict column 0 entirely, shift every column left, clear the
// last column, and place the record at its top. Folding Slide over a record
// sequence from an empty grid reproduces Project of the same sequence, with
// overflow trimmed at whole-column boundaries.
func Slide(grid Grid, rec Record, dim Dimension) Grid {
	out := grid.clone()
	if col, row, ok := out.firstEmpty(); ok {
		out.Cells[col][row] = cellFor(rec, dim)
		return out
	}

	last := out.Cols - 1
	copy(out.Cells, out.Cells[1:])
	out.Cells[last] = make([]Cell, out.Rows)
	out.Cells[last][0] = cellFor(rec, dim)
	return out
}
