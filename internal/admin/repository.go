// Package admin holds operator maintenance operations that fall outside any
// single domain, currently the full data purge.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/platform/db"
)

// purgeTables lists every table the purge empties, event stores and derived
// state alike.
var purgeTables = []string{
	"billing_events",
	"delivery_events",
	"vehicle_openings",
	"dealer_openings",
	"monetary_openings",
	"collections",
	"day_balances",
}

// Repository runs maintenance statements against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Purge empties every table and resets identity sequences, returning the
// per-table row counts that were removed. Counting and truncating happen in
// one transaction so the report matches what was deleted.
func (r *Repository) Purge(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(purgeTables))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, table := range purgeTables {
			var n int64
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
				return fmt.Errorf("admin: count %s: %w", table, err)
			}
			if n > 0 {
				counts[table] = n
			}
		}
		if _, err := tx.Exec(ctx, `TRUNCATE `+strings.Join(purgeTables, ", ")+` RESTART IDENTITY`); err != nil {
			return fmt.Errorf("admin: truncate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
