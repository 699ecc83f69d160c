package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists inventory movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LockedPart is the part projection held under row lock while a movement
// applies.
type LockedPart struct {
	ID          int64
	Codigo      string
	StockActual int64
	StockMinimo int64
	StockMaximo int64
	Activo      bool
	Eliminado   bool
}

// TxRepository is the transactional surface used while applying movements.
type TxRepository interface {
	LockPart(ctx context.Context, id int64) (LockedPart, error)
	MovementExists(ctx context.Context, referencia string, repuestoID int64, tipo MovementKind) (bool, error)
	UpdateStock(ctx context.Context, repuestoID, newStock int64) error
	InsertMovement(ctx context.Context, m Movimiento) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// TxOn adapts an open transaction into the movement surface. Other modules
// use it to apply movements inside their own transaction boundary.
func TxOn(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) LockPart(ctx context.Context, id int64) (LockedPart, error) {
	var p LockedPart
	err := t.tx.QueryRow(ctx, `SELECT id, codigo, stock_actual, stock_minimo, stock_maximo, activo, eliminado
FROM repuestos WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Codigo, &p.StockActual, &p.StockMinimo, &p.StockMaximo, &p.Activo, &p.Eliminado)
	if errors.Is(err, pgx.ErrNoRows) {
		return LockedPart{}, ErrPartNotFound
	}
	return p, err
}

func (t *txRepository) MovementExists(ctx context.Context, referencia string, repuestoID int64, tipo MovementKind) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM movimientos_inventario WHERE referencia=$1 AND repuesto_id=$2 AND tipo=$3)`,
		referencia, repuestoID, tipo).Scan(&exists)
	return exists, err
}

func (t *txRepository) UpdateStock(ctx context.Context, repuestoID, newStock int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE repuestos SET stock_actual=$2, updated_at=NOW() WHERE id=$1`, repuestoID, newStock)
	return err
}

// InsertMovement appends to the movement log. The unique index over
// (referencia, repuesto_id, tipo) backs the duplicate pre-check against races.
func (t *txRepository) InsertMovement(ctx context.Context, m Movimiento) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO movimientos_inventario
(repuesto_id, tipo, cantidad, stock_anterior, stock_nuevo, motivo, referencia, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
RETURNING id`,
		m.RepuestoID, m.Tipo, m.Cantidad, m.StockAnterior, m.StockNuevo, m.Motivo, m.Referencia, m.ActorID).Scan(&id)
	if db.IsUniqueViolation(err, "movimientos_inventario_ref_uniq") {
		return 0, ErrDuplicateMovement
	}
	return id, err
}

// List pages the movement log ordered by commit order (id).
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Movimiento, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	where := `FROM movimientos_inventario
WHERE ($1 = 0 OR repuesto_id = $1)
  AND ($2 = '' OR tipo = $2)
  AND ($3 = '' OR referencia = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at <= $5)`
	args := []any{filters.RepuestoID, string(filters.Tipo), filters.Referencia, filters.From, filters.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, repuesto_id, tipo, cantidad, stock_anterior, stock_nuevo, motivo, referencia, actor_id, created_at %s
ORDER BY id DESC
LIMIT %d OFFSET %d`, where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Movimiento{}
	for rows.Next() {
		var m Movimiento
		if err := rows.Scan(&m.ID, &m.RepuestoID, &m.Tipo, &m.Cantidad, &m.StockAnterior, &m.StockNuevo,
			&m.Motivo, &m.Referencia, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
