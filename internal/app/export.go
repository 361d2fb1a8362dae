package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"bead-road-feed/internal/road"
	"bead-road-feed/internal/storage"
)

// rollingWindow is the number of trailing outcomes each ratio point covers.
const rollingWindow = 50

// Export renders archived outcomes as CSV and/or a PNG of rolling
// parity/size ratios.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var to uint64
	if opts.ToHeight != nil {
		to = *opts.ToHeight
	} else {
		latest, ok, err := store.LatestHeight(ctx)
		if err != nil {
			return err
		}
		if !ok {
			a.Logger.Info().Msg("archive is empty; nothing to export")
			return nil
		}
		to = latest
	}

	var from uint64
	if opts.FromHeight != nil {
		from = *opts.FromHeight
	} else if span := uint64(opts.MaxPoints); to > span {
		from = to - span + 1
	}

	if from > to {
		return errors.New("from-height must not exceed to-height")
	}

	records, err := store.ListRecordsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no outcomes found for export range")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting outcomes")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRatiosPNG(opts.PNGPath, records, opts.MaxPoints); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.OutcomeRecord, max int) []storage.OutcomeRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.OutcomeRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []storage.OutcomeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"height", "hash", "result_value", "parity", "size", "observed_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			strconv.FormatUint(rec.Height, 10),
			rec.Hash,
			strconv.Itoa(rec.ResultValue),
			rec.Parity,
			rec.Size,
			rec.ObservedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeRatiosPNG charts the rolling odd/big ratios over block height. The
// rolling series is computed on the full range, then downsampled to keep the
// chart bounded.
func writeRatiosPNG(path string, records []storage.OutcomeRecord, maxPoints int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	type point struct {
		height uint64
		odd    float64
		big    float64
	}

	points := make([]point, 0, len(records))
	oddCount, bigCount := 0, 0
	for i, rec := range records {
		if rec.Parity == string(road.ParityOdd) {
			oddCount++
		}
		if rec.Size == string(road.SizeBig) {
			bigCount++
		}
		if i >= rollingWindow {
			tail := records[i-rollingWindow]
			if tail.Parity == string(road.ParityOdd) {
				oddCount--
			}
			if tail.Size == string(road.SizeBig) {
				bigCount--
			}
		}

		span := i + 1
		if span > rollingWindow {
			span = rollingWindow
		}
		total := decimal.NewFromInt(int64(span))
		points = append(points, point{
			height: rec.Height,
			odd:    decimal.NewFromInt(int64(oddCount)).DivRound(total, 4).InexactFloat64(),
			big:    decimal.NewFromInt(int64(bigCount)).DivRound(total, 4).InexactFloat64(),
		})
	}

	if maxPoints > 0 && len(points) > maxPoints {
		result := make([]point, 0, maxPoints)
		step := float64(len(points)-1) / float64(maxPoints-1)
		for i := 0; i < maxPoints; i++ {
			idx := int(math.Round(step * float64(i)))
			if idx >= len(points) {
				idx = len(points) - 1
			}
			result = append(result, points[idx])
		}
		points = result
	}

	x := make([]float64, len(points))
	odd := make([]float64, len(points))
	big := make([]float64, len(points))
	for i, p := range points {
		x[i] = float64(p.height)
		odd[i] = p.odd
		big[i] = p.big
	}

	ratioFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Block height",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxis: chart.YAxis{
			Name:           "Rolling ratio",
			ValueFormatter: ratioFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "ODD ratio",
				XValues: x,
				YValues: odd,
			},
			chart.ContinuousSeries{
				Name:    "BIG ratio",
				XValues: x,
				YValues: big,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
