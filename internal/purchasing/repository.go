package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/inventory"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the transactional surface for order mutations. Inventory
// exposes the movement engine over the same transaction so receipts and
// cancellations keep stock and order state atomic.
type TxRepository interface {
	NextSequence(ctx context.Context, prefix string, day time.Time) (int, error)
	InsertOrder(ctx context.Context, o OrdenCompra) (int64, bool, error)
	InsertLine(ctx context.Context, l DetalleOrdenCompra) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (OrdenCompra, error)
	Lines(ctx context.Context, ordenID int64) ([]DetalleOrdenCompra, error)
	SetEstado(ctx context.Context, id int64, estado Estado) error
	SetCancelled(ctx context.Context, id int64, motivo, evidencia string, actorID int64) error
	SetReciboURL(ctx context.Context, id int64, url string) error
	AddReceived(ctx context.Context, detalleID, cantidad int64, precioReal *decimal.Decimal) error
	LinkLinePart(ctx context.Context, detalleID, repuestoID int64) error
	BumpRecepciones(ctx context.Context, ordenID int64) (int, error)
	EnsurePlaceholderPart(ctx context.Context, codigo string, precio decimal.Decimal) (int64, error)
	Inventory() inventory.TxRepository
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

const orderColumns = `id, numero, proveedor_id, estado, total, notas, recepciones,
referencia_proveedor, entrega_esperada, recibo_url, enviada_at, recibida_at,
motivo_cancelacion, evidencia_cancelacion, cancelada_at, cancelada_por,
created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (OrdenCompra, error) {
	var o OrdenCompra
	err := row.Scan(&o.ID, &o.Numero, &o.ProveedorID, &o.Estado, &o.Total, &o.Notas, &o.Recepciones,
		&o.RefProveedor, &o.EntregaEsperada, &o.ReciboURL, &o.EnviadaAt, &o.RecibidaAt,
		&o.MotivoCancel, &o.EvidenciaCancel, &o.CanceladaAt, &o.CanceladaPor,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrdenCompra{}, ErrNotFound
	}
	return o, err
}

// Get loads an order header.
func (r *Repository) Get(ctx context.Context, id int64) (OrdenCompra, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM ordenes_compra WHERE id=$1`, id))
}

// GetWithLines loads an order and its lines.
func (r *Repository) GetWithLines(ctx context.Context, id int64) (OrderWithLines, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return OrderWithLines{}, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return OrderWithLines{}, err
	}
	return OrderWithLines{Orden: o, Lineas: lines}, nil
}

// List pages orders, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]OrdenCompra, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	search := shared.FoldSearchTerm(filters.Search)
	where := `FROM ordenes_compra
WHERE ($1 = '' OR estado = $1)
  AND ($2 = 0 OR proveedor_id = $2)
  AND ($3 = '' OR upper(numero) LIKE '%'||$3||'%')`
	args := []any{string(filters.Estado), filters.ProveedorID, search}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+orderColumns+` %s ORDER BY id DESC LIMIT %d OFFSET %d`,
		where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []OrdenCompra{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, ordenID int64) ([]DetalleOrdenCompra, error) {
	rows, err := q.Query(ctx, `SELECT id, orden_id, repuesto_id, codigo_nuevo, descripcion, cantidad, cantidad_recibida, precio_unitario, precio_unitario_real
FROM detalle_ordenes_compra WHERE orden_id=$1 ORDER BY id`, ordenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []DetalleOrdenCompra{}
	for rows.Next() {
		var l DetalleOrdenCompra
		if err := rows.Scan(&l.ID, &l.OrdenID, &l.RepuestoID, &l.CodigoNuevo, &l.Descripcion,
			&l.Cantidad, &l.CantidadRecibida, &l.PrecioUnitario, &l.PrecioReal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// NextSequence returns the next daily counter value for number allocation.
// It runs inside the creation transaction; losers of the unique-index race
// retry the whole transaction with a fresh value.
func (t *txRepository) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	pattern := fmt.Sprintf("%s%s-%%", prefix, day.Format("20060102"))
	var seq int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(RIGHT(numero, 4) AS int)), 0) + 1
FROM ordenes_compra WHERE numero LIKE $1`, pattern).Scan(&seq)
	return seq, err
}

// InsertOrder writes the order header. A duplicate numero surfaces so the
// allocator can retry with the next counter value.
func (t *txRepository) InsertOrder(ctx context.Context, o OrdenCompra) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO ordenes_compra
(numero, proveedor_id, estado, total, notas, recepciones, referencia_proveedor, entrega_esperada, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8,NOW(),NOW())
RETURNING id`,
		o.Numero, o.ProveedorID, o.Estado, o.Total, o.Notas, o.RefProveedor, o.EntregaEsperada, o.CreatedBy).Scan(&id)
	if db.IsUniqueViolation(err, "ordenes_compra_numero_uniq") {
		return 0, true, err
	}
	return id, false, err
}

// InsertLine writes one order line.
func (t *txRepository) InsertLine(ctx context.Context, l DetalleOrdenCompra) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO detalle_ordenes_compra
(orden_id, repuesto_id, codigo_nuevo, descripcion, cantidad, cantidad_recibida, precio_unitario)
VALUES ($1,$2,$3,$4,$5,0,$6)
RETURNING id`,
		l.OrdenID, l.RepuestoID, l.CodigoNuevo, l.Descripcion, l.Cantidad, l.PrecioUnitario).Scan(&id)
	return id, err
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (OrdenCompra, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM ordenes_compra WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) Lines(ctx context.Context, ordenID int64) ([]DetalleOrdenCompra, error) {
	return queryLines(ctx, t.tx, ordenID)
}

// SetEstado also stamps the lifecycle timestamp the target state implies.
func (t *txRepository) SetEstado(ctx context.Context, id int64, estado Estado) error {
	_, err := t.tx.Exec(ctx, `UPDATE ordenes_compra SET estado=$2,
enviada_at = CASE WHEN $2 = 'ENVIADA' THEN NOW() ELSE enviada_at END,
recibida_at = CASE WHEN $2 = 'RECIBIDA' THEN NOW() ELSE recibida_at END,
updated_at=NOW() WHERE id=$1`, id, estado)
	return err
}

func (t *txRepository) SetCancelled(ctx context.Context, id int64, motivo, evidencia string, actorID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE ordenes_compra
SET estado=$2, motivo_cancelacion=$3, evidencia_cancelacion=$4, cancelada_at=NOW(), cancelada_por=$5, updated_at=NOW()
WHERE id=$1`, id, EstadoCancelada, motivo, evidencia, actorID)
	return err
}

func (t *txRepository) SetReciboURL(ctx context.Context, id int64, url string) error {
	_, err := t.tx.Exec(ctx, `UPDATE ordenes_compra SET recibo_url=$2, updated_at=NOW() WHERE id=$1`, id, url)
	return err
}

// AddReceived bumps the received counter and records the invoiced unit price
// when the receipt carries one. An already-set real price is kept unless the
// caller sends a new value.
func (t *txRepository) AddReceived(ctx context.Context, detalleID, cantidad int64, precioReal *decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE detalle_ordenes_compra
SET cantidad_recibida = cantidad_recibida + $2, precio_unitario_real = COALESCE($3, precio_unitario_real)
WHERE id=$1`, detalleID, cantidad, precioReal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (t *txRepository) LinkLinePart(ctx context.Context, detalleID, repuestoID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE detalle_ordenes_compra SET repuesto_id=$2 WHERE id=$1`, detalleID, repuestoID)
	return err
}

func (t *txRepository) BumpRecepciones(ctx context.Context, ordenID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `UPDATE ordenes_compra SET recepciones = recepciones + 1, updated_at=NOW()
WHERE id=$1 RETURNING recepciones`, ordenID).Scan(&n)
	return n, err
}

// EnsurePlaceholderPart resolves a code_new line to a part id, creating or
// reactivating a placeholder row when needed.
func (t *txRepository) EnsurePlaceholderPart(ctx context.Context, codigo string, precio decimal.Decimal) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM repuestos WHERE codigo=$1 AND NOT eliminado FOR UPDATE`, codigo).Scan(&id)
	switch {
	case err == nil:
		_, err = t.tx.Exec(ctx, `UPDATE repuestos SET activo=TRUE, updated_at=NOW() WHERE id=$1`, id)
		return id, err
	case errors.Is(err, pgx.ErrNoRows):
		err = t.tx.QueryRow(ctx, `INSERT INTO repuestos
(codigo, nombre, descripcion, stock_actual, stock_minimo, stock_maximo, precio_compra, precio_venta, unidad_medida, activo, eliminado, created_at, updated_at)
VALUES ($1,$2,'',0,0,1,$3,$3,'unidad',TRUE,FALSE,NOW(),NOW())
RETURNING id`, codigo, PlaceholderName, precio).Scan(&id)
		return id, err
	default:
		return 0, err
	}
}

func (t *txRepository) Inventory() inventory.TxRepository {
	return inventory.TxOn(t.tx)
}
