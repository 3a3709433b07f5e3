package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lysyi3m/feed2social/app/database"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printLedger writes a per-destination summary followed by the newest entries of each destination.
func printLedger(ctx context.Context, w io.Writer, ledger database.LedgerReader, destinations []string, limit int) error {
	stats, err := ledger.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger stats: %w", err)
	}

	if len(destinations) == 0 {
		for _, s := range stats {
			destinations = append(destinations, s.Destination)
		}
	}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		last := "-"
		if s.LastEntryAt != nil {
			last = formatTime(*s.LastEntryAt)
		}
		rows = append(rows, []string{s.Destination, strconv.Itoa(s.Entries), last})
	}
	fmt.Fprintln(w, renderTable([]string{"Destination", "Entries", "Last entry"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))

	for _, destination := range destinations {
		entries, err := ledger.List(ctx, destination, limit)
		if err != nil {
			return fmt.Errorf("failed to list ledger entries: %w", err)
		}

		rows := make([][]string, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, []string{formatTime(entry.CreatedAt), entry.EntryID})
		}

		fmt.Fprintf(w, "\n%s\n", destination)
		fmt.Fprintln(w, renderTable([]string{"Committed", "Item"}, rows, nil))
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02 15:04:05")
}
