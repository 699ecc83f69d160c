package payables

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/cashbox"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/purchasing"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists payments and manual payables in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// POTarget is the locked purchase-order projection payments run against.
type POTarget struct {
	ID     int64
	Numero string
	Estado purchasing.Estado
	Total  decimal.Decimal
}

// TxRepository is the transactional surface for payment registration. The
// shift lock and cash entry live in the same transaction as the payment row.
type TxRepository interface {
	LockPO(ctx context.Context, id int64) (POTarget, error)
	SumPOPayments(ctx context.Context, ordenID int64) (decimal.Decimal, error)
	InsertPOPayment(ctx context.Context, ordenID int64, p Pago) (int64, error)
	LockManual(ctx context.Context, id int64) (CuentaPagarManual, error)
	SumManualPayments(ctx context.Context, cuentaID int64) (decimal.Decimal, error)
	InsertManualPayment(ctx context.Context, cuentaID int64, p Pago) (int64, error)
	OpenShiftForUpdate(ctx context.Context, usuarioID int64) (int64, error)
	InsertCashEntry(ctx context.Context, e cashbox.CajaMovimiento) (int64, error)
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

// InsertManual registers a manual payable.
func (r *Repository) InsertManual(ctx context.Context, c CuentaPagarManual) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO cuentas_pagar_manual
(proveedor_id, descripcion, total, vencimiento, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id`, c.ProveedorID, c.Descripcion, c.Total, c.Vencimiento, c.CreatedBy).Scan(&id)
	return id, err
}

// GetManual loads a manual payable with its balance.
func (r *Repository) GetManual(ctx context.Context, id int64) (ManualWithBalance, error) {
	var out ManualWithBalance
	err := r.pool.QueryRow(ctx, `SELECT c.id, c.proveedor_id, c.descripcion, c.total, c.vencimiento, c.created_by, c.created_at,
COALESCE((SELECT SUM(monto) FROM pagos_cuentas_pagar WHERE cuenta_id=c.id), 0)
FROM cuentas_pagar_manual c WHERE c.id=$1`, id).
		Scan(&out.Cuenta.ID, &out.Cuenta.ProveedorID, &out.Cuenta.Descripcion, &out.Cuenta.Total,
			&out.Cuenta.Vencimiento, &out.Cuenta.CreatedBy, &out.Cuenta.CreatedAt, &out.Pagado)
	if errors.Is(err, pgx.ErrNoRows) {
		return ManualWithBalance{}, ErrManualNotFound
	}
	if err != nil {
		return ManualWithBalance{}, err
	}
	out.Saldo = out.Cuenta.Total.Sub(out.Pagado)
	return out, nil
}

// ListManual pages manual payables with balances, most recent first.
func (r *Repository) ListManual(ctx context.Context, filters ManualListFilters) ([]ManualWithBalance, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	where := `FROM cuentas_pagar_manual c
WHERE ($1 = 0 OR c.proveedor_id = $1)
  AND (NOT $2 OR c.total > COALESCE((SELECT SUM(monto) FROM pagos_cuentas_pagar WHERE cuenta_id=c.id), 0))`
	args := []any{filters.ProveedorID, filters.OnlyPending}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT c.id, c.proveedor_id, c.descripcion, c.total, c.vencimiento, c.created_by, c.created_at,
COALESCE((SELECT SUM(monto) FROM pagos_cuentas_pagar WHERE cuenta_id=c.id), 0) %s
ORDER BY c.id DESC LIMIT %d OFFSET %d`, where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []ManualWithBalance{}
	for rows.Next() {
		var out ManualWithBalance
		if err := rows.Scan(&out.Cuenta.ID, &out.Cuenta.ProveedorID, &out.Cuenta.Descripcion, &out.Cuenta.Total,
			&out.Cuenta.Vencimiento, &out.Cuenta.CreatedBy, &out.Cuenta.CreatedAt, &out.Pagado); err != nil {
			return nil, 0, err
		}
		out.Saldo = out.Cuenta.Total.Sub(out.Pagado)
		items = append(items, out)
	}
	return items, total, rows.Err()
}

// POPayments lists a purchase order's payments in commit order.
func (r *Repository) POPayments(ctx context.Context, ordenID int64) ([]Pago, error) {
	return queryPayments(ctx, r.pool, `SELECT id, monto, metodo, referencia, motivo, turno_id, actor_id, created_at
FROM pagos_ordenes_compra WHERE orden_id=$1 ORDER BY id`, ordenID)
}

// ManualPayments lists a manual payable's payments in commit order.
func (r *Repository) ManualPayments(ctx context.Context, cuentaID int64) ([]Pago, error) {
	return queryPayments(ctx, r.pool, `SELECT id, monto, metodo, referencia, motivo, turno_id, actor_id, created_at
FROM pagos_cuentas_pagar WHERE cuenta_id=$1 ORDER BY id`, cuentaID)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPayments(ctx context.Context, q queryer, sql string, arg int64) ([]Pago, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Pago{}
	for rows.Next() {
		var p Pago
		if err := rows.Scan(&p.ID, &p.Monto, &p.Metodo, &p.Referencia, &p.Motivo, &p.TurnoID, &p.ActorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txRepository) LockPO(ctx context.Context, id int64) (POTarget, error) {
	var po POTarget
	err := t.tx.QueryRow(ctx, `SELECT id, numero, estado, total FROM ordenes_compra WHERE id=$1 FOR UPDATE`, id).
		Scan(&po.ID, &po.Numero, &po.Estado, &po.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return POTarget{}, purchasing.ErrNotFound
	}
	return po, err
}

func (t *txRepository) SumPOPayments(ctx context.Context, ordenID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(monto), 0) FROM pagos_ordenes_compra WHERE orden_id=$1`, ordenID).Scan(&sum)
	return sum, err
}

func (t *txRepository) InsertPOPayment(ctx context.Context, ordenID int64, p Pago) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO pagos_ordenes_compra
(orden_id, monto, metodo, referencia, motivo, turno_id, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING id`, ordenID, p.Monto, p.Metodo, p.Referencia, p.Motivo, p.TurnoID, p.ActorID).Scan(&id)
	return id, err
}

func (t *txRepository) LockManual(ctx context.Context, id int64) (CuentaPagarManual, error) {
	var c CuentaPagarManual
	err := t.tx.QueryRow(ctx, `SELECT id, proveedor_id, descripcion, total, vencimiento, created_by, created_at
FROM cuentas_pagar_manual WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.ProveedorID, &c.Descripcion, &c.Total, &c.Vencimiento, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CuentaPagarManual{}, ErrManualNotFound
	}
	return c, err
}

func (t *txRepository) SumManualPayments(ctx context.Context, cuentaID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(monto), 0) FROM pagos_cuentas_pagar WHERE cuenta_id=$1`, cuentaID).Scan(&sum)
	return sum, err
}

func (t *txRepository) InsertManualPayment(ctx context.Context, cuentaID int64, p Pago) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO pagos_cuentas_pagar
(cuenta_id, monto, metodo, referencia, motivo, turno_id, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING id`, cuentaID, p.Monto, p.Metodo, p.Referencia, p.Motivo, p.TurnoID, p.ActorID).Scan(&id)
	return id, err
}

func (t *txRepository) OpenShiftForUpdate(ctx context.Context, usuarioID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM caja_turnos WHERE usuario_id=$1 AND estado=$2 FOR UPDATE`,
		usuarioID, cashbox.EstadoAbierto).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, cashbox.ErrNoOpenShift
	}
	return id, err
}

func (t *txRepository) InsertCashEntry(ctx context.Context, e cashbox.CajaMovimiento) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO caja_movimientos
(turno_id, tipo, monto, concepto, referencia, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING id`, e.TurnoID, e.Tipo, e.Monto, e.Concepto, e.Referencia, e.ActorID).Scan(&id)
	return id, err
}
