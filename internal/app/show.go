package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"bead-road-feed/internal/road"
	"bead-road-feed/internal/storage"
	"bead-road-feed/internal/trend"
)

// Show prints recent archived outcomes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show outcomes")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentRecords(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no outcomes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Height\tValue\tParity\tSize\tObserved (UTC)\tHash")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%d\t%d\t%s\t%s\t%s\t%s\n",
			rec.Height,
			rec.ResultValue,
			rec.Parity,
			rec.Size,
			rec.ObservedAt.UTC().Format(time.RFC3339),
			shortHash(rec.Hash),
		)
	}

	writer.Flush()

	// ListRecentRecords 返回的是最新在前的顺序, 正好满足 Summarize 的输入约定.
	summary := trend.Summarize(toRoadRecords(records))
	fmt.Fprintf(os.Stdout, "\n%d outcomes: ODD %s / BIG %s, streak %s×%d (parity) %s×%d (size)\n",
		summary.Total,
		summary.OddRatio.String(),
		summary.BigRatio.String(),
		summary.Parity.Kind, summary.Parity.Length,
		summary.Size.Kind, summary.Size.Length,
	)
	return nil
}

func toRoadRecords(rows []storage.OutcomeRecord) []road.Record {
	records := make([]road.Record, len(rows))
	for i, row := range rows {
		records[i] = row.ToRoadRecord()
	}
	return records
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:10] + "…" + hash[len(hash)-4:]
}
