package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/feed2social/app/database"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Destination", "Entries"}, [][]string{{"threads", "12"}, {"bluesky"}}, []columnAlignment{alignLeft, alignRight})

	if !strings.Contains(out, "Destination") {
		t.Errorf("Expected header in output, got:\n%s", out)
	}
	if strings.Contains(out, "DESTINATION") {
		t.Errorf("Expected header case to be kept, got:\n%s", out)
	}
	if !strings.Contains(out, "threads") || !strings.Contains(out, "12") {
		t.Errorf("Expected row in output, got:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("Expected empty output without headers")
	}
}

func TestPrintLedger(t *testing.T) {
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "ledger.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	repo := database.NewLedgerRepository(db)
	if err := repo.Commit(ctx, "threads", "https://example.com/1", time.Unix(100, 0)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Commit(ctx, "plurk", "https://example.com/2", time.Unix(200, 0)); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printLedger(ctx, &buf, repo, nil, 10); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"threads", "plurk", "https://example.com/1", "https://example.com/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printLedger(ctx, &buf, repo, []string{"plurk"}, 10); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "https://example.com/1") {
		t.Errorf("Expected only plurk entries, got:\n%s", buf.String())
	}
}
