package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists settings rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAll loads every settings row as a key/value map.
func (r *Repository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT clave, valor FROM configuraciones`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

// Upsert writes a single setting value.
func (r *Repository) Upsert(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO configuraciones (clave, valor, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (clave) DO UPDATE SET valor=EXCLUDED.valor, updated_at=NOW()`, key, value)
	return err
}
