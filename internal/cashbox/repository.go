package cashbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists cash shifts and their ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the transactional surface for ledger writes and shift close.
type TxRepository interface {
	OpenShiftForUpdate(ctx context.Context, usuarioID int64) (CajaTurno, error)
	InsertEntry(ctx context.Context, e CajaMovimiento) (int64, error)
	SumEntries(ctx context.Context, turnoID int64) (in, out decimal.Decimal, err error)
	CloseShift(ctx context.Context, turnoID int64, cierre, esperado, diferencia decimal.Decimal) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const shiftColumns = `id, usuario_id, estado, monto_apertura, monto_cierre, monto_esperado, diferencia, opened_at, closed_at`

func scanShift(row pgx.Row) (CajaTurno, error) {
	var s CajaTurno
	err := row.Scan(&s.ID, &s.UsuarioID, &s.Estado, &s.MontoApertura, &s.MontoCierre,
		&s.MontoEsperado, &s.Diferencia, &s.OpenedAt, &s.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CajaTurno{}, ErrShiftNotFound
	}
	return s, err
}

// InsertShift opens a shift. The partial unique index on (usuario_id) WHERE
// estado='ABIERTO' backs the one-open-shift rule against races.
func (r *Repository) InsertShift(ctx context.Context, usuarioID int64, apertura decimal.Decimal) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO caja_turnos
(usuario_id, estado, monto_apertura, monto_cierre, monto_esperado, diferencia, opened_at)
VALUES ($1,$2,$3,0,0,0,NOW())
RETURNING id`, usuarioID, EstadoAbierto, apertura).Scan(&id)
	if db.IsUniqueViolation(err, "caja_turnos_abierto_uniq") {
		return 0, ErrShiftAlreadyOpen
	}
	return id, err
}

// OpenShift loads the user's open shift outside a transaction.
func (r *Repository) OpenShift(ctx context.Context, usuarioID int64) (CajaTurno, error) {
	s, err := scanShift(r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM caja_turnos
WHERE usuario_id=$1 AND estado=$2`, usuarioID, EstadoAbierto))
	if errors.Is(err, ErrShiftNotFound) {
		return CajaTurno{}, ErrNoOpenShift
	}
	return s, err
}

// Get loads one shift.
func (r *Repository) Get(ctx context.Context, id int64) (CajaTurno, error) {
	return scanShift(r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM caja_turnos WHERE id=$1`, id))
}

// Entries lists a shift's ledger in commit order.
func (r *Repository) Entries(ctx context.Context, turnoID int64) ([]CajaMovimiento, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, turno_id, tipo, monto, concepto, referencia, actor_id, created_at
FROM caja_movimientos WHERE turno_id=$1 ORDER BY id`, turnoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CajaMovimiento{}
	for rows.Next() {
		var e CajaMovimiento
		if err := rows.Scan(&e.ID, &e.TurnoID, &e.Tipo, &e.Monto, &e.Concepto, &e.Referencia, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// List pages shifts, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]CajaTurno, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	where := `FROM caja_turnos
WHERE ($1 = 0 OR usuario_id = $1)
  AND ($2 = '' OR estado = $2)`
	args := []any{filters.UsuarioID, filters.Estado}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+shiftColumns+` %s ORDER BY id DESC LIMIT %d OFFSET %d`,
		where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []CajaTurno{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (t *txRepository) OpenShiftForUpdate(ctx context.Context, usuarioID int64) (CajaTurno, error) {
	s, err := scanShift(t.tx.QueryRow(ctx, `SELECT `+shiftColumns+` FROM caja_turnos
WHERE usuario_id=$1 AND estado=$2 FOR UPDATE`, usuarioID, EstadoAbierto))
	if errors.Is(err, ErrShiftNotFound) {
		return CajaTurno{}, ErrNoOpenShift
	}
	return s, err
}

// InsertEntry appends a cash ledger row under the shift row lock.
func (t *txRepository) InsertEntry(ctx context.Context, e CajaMovimiento) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO caja_movimientos
(turno_id, tipo, monto, concepto, referencia, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING id`, e.TurnoID, e.Tipo, e.Monto, e.Concepto, e.Referencia, e.ActorID).Scan(&id)
	return id, err
}

func (t *txRepository) SumEntries(ctx context.Context, turnoID int64) (decimal.Decimal, decimal.Decimal, error) {
	var in, out decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(monto) FILTER (WHERE tipo=$2), 0),
COALESCE(SUM(monto) FILTER (WHERE tipo=$3), 0)
FROM caja_movimientos WHERE turno_id=$1`, turnoID, EntryIn, EntryOut).Scan(&in, &out)
	return in, out, err
}

func (t *txRepository) CloseShift(ctx context.Context, turnoID int64, cierre, esperado, diferencia decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE caja_turnos
SET estado=$2, monto_cierre=$3, monto_esperado=$4, diferencia=$5, closed_at=NOW()
WHERE id=$1 AND estado=$6`, turnoID, EstadoCerrado, cierre, esperado, diferencia, EstadoAbierto)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftClosed
	}
	return nil
}
