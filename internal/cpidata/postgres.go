package cpidata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creco/imaikura/internal/inflation"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS cpi_index (
		year TEXT PRIMARY KEY,
		jpy  TEXT NOT NULL DEFAULT '',
		usd  TEXT NOT NULL DEFAULT '',
		gbp  TEXT NOT NULL DEFAULT '',
		eur  TEXT NOT NULL DEFAULT ''
	)`

// Repository stores the CPI table in PostgreSQL
// ⭐ SSOT: cpi_index テーブルの読み書きはここだけ
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new CPI repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates cpi_index when it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create cpi_index: %w", err)
	}
	return nil
}

// LoadTable reads every row of cpi_index
func (r *Repository) LoadTable(ctx context.Context) (*inflation.CpiTable, error) {
	query := `
		SELECT year, jpy, usd, gbp, eur
		FROM cpi_index
		ORDER BY year
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cpi_index: %w", err)
	}
	defer rows.Close()

	var out []inflation.CpiRow
	for rows.Next() {
		var year, jpy, usd, gbp, eur string
		if err := rows.Scan(&year, &jpy, &usd, &gbp, &eur); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, inflation.CpiRow{
			Year:   year,
			Values: map[string]string{"jpy": jpy, "usd": usd, "gbp": gbp, "eur": eur},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("cpi_index is empty")
	}

	return inflation.NewCpiTable(out), nil
}

// Import upserts rows in one batch
func (r *Repository) Import(ctx context.Context, rows []inflation.CpiRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO cpi_index (year, jpy, usd, gbp, eur)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (year) DO UPDATE SET
			jpy = EXCLUDED.jpy,
			usd = EXCLUDED.usd,
			gbp = EXCLUDED.gbp,
			eur = EXCLUDED.eur`

	for _, row := range rows {
		batch.Queue(query, row.Year,
			row.Values["jpy"], row.Values["usd"], row.Values["gbp"], row.Values["eur"])
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, row := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert CPI year %s: %w", row.Year, err)
		}
	}

	return nil
}
