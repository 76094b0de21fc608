package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cemtrack/cemtrack/internal/shared"
)

// Repository persists collections in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one collection and fills in its id and created_at.
func (r *Repository) Insert(ctx context.Context, c Collection) (Collection, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO collections
(dealer_code, dealer_name, received_date, amount, mode, reference)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
RETURNING id, created_at`,
		c.DealerCode, c.DealerName, c.Date, c.Amount, c.Mode, c.Reference).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Collection{}, fmt.Errorf("ledger: insert collection: %w", err)
	}
	return c, nil
}

// Delete removes one collection.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get returns one collection by id.
func (r *Repository) Get(ctx context.Context, id int64) (Collection, error) {
	c, err := scanOne(r.pool.QueryRow(ctx, `SELECT id, dealer_code, dealer_name, received_date, amount, mode, reference, created_at
FROM collections WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Collection{}, shared.ErrNotFound
		}
		return Collection{}, fmt.Errorf("ledger: get collection: %w", err)
	}
	return c, nil
}

// ListForDealerRange returns a dealer's collections in [from, to], oldest first.
func (r *Repository) ListForDealerRange(ctx context.Context, dealerCode string, from, to time.Time) ([]Collection, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, dealer_code, dealer_name, received_date, amount, mode, reference, created_at
FROM collections WHERE dealer_code = $1 AND received_date BETWEEN $2 AND $3
ORDER BY received_date, id`, dealerCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger: list collections: %w", err)
	}
	defer rows.Close()
	var out []Collection
	for rows.Next() {
		c, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CollectionsForDealerMonth sums a dealer's payments in [from, to]. Satisfies
// the carry-forward resolver's collections port.
func (r *Repository) CollectionsForDealerMonth(ctx context.Context, dealerCode string, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0)
FROM collections WHERE dealer_code = $1 AND received_date BETWEEN $2 AND $3`,
		dealerCode, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ledger: sum collections: %w", err)
	}
	return total, nil
}

func scanOne(row pgx.Row) (Collection, error) {
	var (
		c   Collection
		ref pgtype.Text
	)
	if err := row.Scan(&c.ID, &c.DealerCode, &c.DealerName, &c.Date, &c.Amount, &c.Mode, &ref, &c.CreatedAt); err != nil {
		return Collection{}, err
	}
	c.Reference = ref.String
	return c, nil
}
