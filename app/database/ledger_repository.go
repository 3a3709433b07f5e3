package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const ledgerTable = "ledger_entries"

var _ LedgerReader = (*LedgerRepository)(nil)

// LedgerRepository stores processed item identifiers per destination.
// Rows are only ever inserted.
type LedgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ForDestination scopes the ledger to one destination name.
func (r *LedgerRepository) ForDestination(destination string) Ledger {
	return &destinationLedger{repo: r, destination: destination}
}

func (r *LedgerRepository) Seen(ctx context.Context, destination, entryID string) (bool, error) {
	query, args, err := sq.Select("1").
		From(ledgerTable).
		Where(sq.Eq{"destination": destination, "entry_id": entryID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var found int
	err = retryOnBusy(ctx, func() error {
		return r.db.QueryRowContext(ctx, query, args...).Scan(&found)
	})
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ledger entry: %w", err)
	}

	return true, nil
}

// Commit records the entry. Committing an entry twice keeps the first timestamp.
func (r *LedgerRepository) Commit(ctx context.Context, destination, entryID string, at time.Time) error {
	query, args, err := sq.Insert(ledgerTable).
		Columns("destination", "entry_id", "created_at").
		Values(destination, entryID, at.UTC().Unix()).
		Suffix("ON CONFLICT (destination, entry_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	err = retryOnBusy(ctx, func() error {
		_, execErr := r.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to commit ledger entry: %w", err)
	}

	return nil
}

func (r *LedgerRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(ledgerTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	err = retryOnBusy(ctx, func() error {
		return r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

func (r *LedgerRepository) Stats(ctx context.Context) ([]DestinationStats, error) {
	query, args, err := sq.Select("destination", "COUNT(*)", "MAX(created_at)").
		From(ledgerTable).
		GroupBy("destination").
		OrderBy("destination").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger stats: %w", err)
	}
	defer rows.Close()

	var stats []DestinationStats
	for rows.Next() {
		var s DestinationStats
		var last sql.NullInt64
		if err := rows.Scan(&s.Destination, &s.Entries, &last); err != nil {
			return nil, fmt.Errorf("failed to scan ledger stats: %w", err)
		}
		if last.Valid {
			t := time.Unix(last.Int64, 0)
			s.LastEntryAt = &t
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger stats: %w", err)
	}

	return stats, nil
}

// List returns the newest entries first. An empty destination lists every destination.
func (r *LedgerRepository) List(ctx context.Context, destination string, limit int) ([]LedgerEntry, error) {
	builder := sq.Select("id", "destination", "entry_id", "created_at").
		From(ledgerTable).
		OrderBy("created_at DESC", "id DESC")
	if destination != "" {
		builder = builder.Where(sq.Eq{"destination": destination})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Destination, &entry.EntryID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

type destinationLedger struct {
	repo        *LedgerRepository
	destination string
}

func (l *destinationLedger) Seen(ctx context.Context, entryID string) (bool, error) {
	return l.repo.Seen(ctx, l.destination, entryID)
}

func (l *destinationLedger) Commit(ctx context.Context, entryID string, at time.Time) error {
	return l.repo.Commit(ctx, l.destination, entryID, at)
}
