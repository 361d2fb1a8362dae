package road

import (
	"math/rand"
	"testing"
)

func TestProjectEmptyInput(t *testing.T) {
	grid := Project(nil, DimensionParity, DefaultLayout)
	if grid.Cols != 44 || grid.Rows != 6 {
		t.Fatalf("布局不正确: %dx%d", grid.Cols, grid.Rows)
	}
	for c := 0; c < grid.Cols; c++ {
		for r := 0; r < grid.Rows; r++ {
			if !grid.Cells[c][r].Empty() {
				t.Fatalf("空输入应产生全空网格, [%d][%d] 非空", c, r)
			}
		}
	}
}

func TestProjectFillOrder(t *testing.T) {
	layout := Layout{Cols: 4, Rows: 3}
	records := makeBacklog(10, 16) // 7 条
	grid := Project(records, DimensionParity, layout)

	for idx := 0; idx < 7; idx++ {
		col, row := idx/layout.Rows, idx%layout.Rows
		cell := grid.Cells[col][row]
		want := uint64(10 + idx)
		if cell.BlockHeight != want {
			t.Fatalf("时序索引 %d 应落在 [%d][%d] 高度 %d, 实际 %d", idx, col, row, want, cell.BlockHeight)
		}
		if cell.Type != string(ParityOf(int(want%10))) {
			t.Fatalf("单元格奇偶不正确: %+v", cell)
		}
	}
	for idx := 7; idx < layout.Capacity(); idx++ {
		if !grid.Cells[idx/layout.Rows][idx%layout.Rows].Empty() {
			t.Fatalf("索引 %d 之后的单元格应为空", idx)
		}
	}
}

func TestProjectSizeDimension(t *testing.T) {
	rec := makeRecord(17) // value 7 ⇒ BIG
	grid := Project([]Record{rec}, DimensionSize, Layout{Cols: 2, Rows: 2})
	if grid.Cells[0][0].Type != string(SizeBig) {
		t.Fatalf("size 维度应携带 BIG/SMALL, 实际 %q", grid.Cells[0][0].Type)
	}
}

func TestProjectKeepsOnlyNewestCapacity(t *testing.T) {
	layout := Layout{Cols: 3, Rows: 2}
	records := makeBacklog(1, 10) // 容量 6, 应只保留 5..10
	grid := Project(records, DimensionParity, layout)

	if grid.Cells[0][0].BlockHeight != 5 {
		t.Fatalf("最旧保留高度应为 5, 实际 %d", grid.Cells[0][0].BlockHeight)
	}
	if grid.Cells[2][1].BlockHeight != 10 {
		t.Fatalf("最新高度应位于末格, 实际 %d", grid.Cells[2][1].BlockHeight)
	}
	for c := 0; c < grid.Cols; c++ {
		for r := 0; r < grid.Rows; r++ {
			if h := grid.Cells[c][r].BlockHeight; h >= 1 && h <= 4 {
				t.Fatalf("高度 %d 应被截断", h)
			}
		}
	}
}

// 规范场景: 高度 2..265 投影后, 265 位于列 43 行 5, 2 位于列 0 行 0。
func TestProjectCanonicalScenario(t *testing.T) {
	w := NewWindow(DefaultLayout.Capacity())
	w.Rebuild(makeBacklog(1, 265), Rule{Step: 1})

	grid := Project(w.Snapshot(), DimensionParity, DefaultLayout)
	if got := grid.Cells[43][5].BlockHeight; got != 265 {
		t.Fatalf("高度 265 应位于列 43 行 5, 实际该格高度 %d", got)
	}
	if got := grid.Cells[0][0].BlockHeight; got != 2 {
		t.Fatalf("高度 2 应位于列 0 行 0, 实际该格高度 %d", got)
	}
}

func TestSlideDoesNotMutateInput(t *testing.T) {
	layout := Layout{Cols: 2, Rows: 2}
	before := Project(makeBacklog(1, 2), DimensionParity, layout)
	snapshot := before.clone()

	_ = Slide(before, makeRecord(3), DimensionParity)

	for c := range before.Cells {
		for r := range before.Cells[c] {
			if before.Cells[c][r] != snapshot.Cells[c][r] {
				t.Fatalf("Slide 不应修改输入网格, [%d][%d] 发生变化", c, r)
			}
		}
	}
}

func TestSlideEvictsOldestColumnWhenFull(t *testing.T) {
	layout := Layout{Cols: 3, Rows: 2}
	grid := NewGrid(layout)
	for h := uint64(1); h <= 6; h++ {
		grid = Slide(grid, makeRecord(h), DimensionParity)
	}
	// 网格已满; 第 7 条应整列淘汰列 0 (高度 1,2)
	grid = Slide(grid, makeRecord(7), DimensionParity)

	if grid.Cells[0][0].BlockHeight != 3 || grid.Cells[0][1].BlockHeight != 4 {
		t.Fatalf("列 0 应为高度 3,4, 实际 %d,%d", grid.Cells[0][0].BlockHeight, grid.Cells[0][1].BlockHeight)
	}
	if grid.Cells[2][0].BlockHeight != 7 {
		t.Fatalf("新记录应位于末列行 0, 实际 %d", grid.Cells[2][0].BlockHeight)
	}
	if !grid.Cells[2][1].Empty() {
		t.Fatal("淘汰后末列其余单元格应为空")
	}
}

// 核心等价性: 从空网格逐条 Slide 与整列边界截断后的 Project 结果一致。
func TestSlideProjectEquivalence(t *testing.T) {
	layout := Layout{Cols: 5, Rows: 3}
	capacity := layout.Capacity()

	for n := 0; n <= capacity*3+layout.Rows+1; n++ {
		records := makeBacklog(1, uint64(n))

		slid := NewGrid(layout)
		for _, rec := range records {
			slid = Slide(slid, rec, DimensionParity)
		}

		// 溢出按整列淘汰: 丢弃最旧 rows*ceil((n-cap)/rows) 条
		trimmed := records
		if n > capacity {
			dropped := ((n - capacity + layout.Rows - 1) / layout.Rows) * layout.Rows
			trimmed = records[dropped:]
		}
		projected := Project(trimmed, DimensionParity, layout)

		for c := 0; c < layout.Cols; c++ {
			for r := 0; r < layout.Rows; r++ {
				if slid.Cells[c][r] != projected.Cells[c][r] {
					t.Fatalf("n=%d [%d][%d]: slide=%+v project=%+v", n, c, r, slid.Cells[c][r], projected.Cells[c][r])
				}
			}
		}
	}
}

// 随机规则与随机布局下的等价性抽样。
func TestSlideProjectEquivalenceRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 40; trial++ {
		layout := Layout{Cols: 2 + rng.Intn(6), Rows: 1 + rng.Intn(5)}
		rule := Rule{Step: 1 + rng.Int63n(4), Offset: rng.Int63n(5)}

		var aligned []Record
		height := uint64(0)
		for len(aligned) < layout.Capacity()+rng.Intn(layout.Capacity()*2+1) {
			height++
			if rule.Aligned(height) {
				aligned = append(aligned, makeRecord(height))
			}
		}

		slid := NewGrid(layout)
		for _, rec := range aligned {
			slid = Slide(slid, rec, DimensionSize)
		}

		trimmed := aligned
		if n, capacity := len(aligned), layout.Capacity(); n > capacity {
			dropped := ((n - capacity + layout.Rows - 1) / layout.Rows) * layout.Rows
			trimmed = aligned[dropped:]
		}
		projected := Project(trimmed, DimensionSize, layout)

		for c := 0; c < layout.Cols; c++ {
			for r := 0; r < layout.Rows; r++ {
				if slid.Cells[c][r] != projected.Cells[c][r] {
					t.Fatalf("trial=%d layout=%+v rule=%+v [%d][%d] 不等价", trial, layout, rule, c, r)
				}
			}
		}
	}
}
