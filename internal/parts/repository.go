package parts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists the spare-part registry in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service
// during permanent deletion.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Repuesto, error)
	MarkDeleted(ctx context.Context, id int64, newCode, reason string, actorID int64) error
	Raw() pgx.Tx
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const partColumns = `id, codigo, nombre, descripcion, categoria_id, proveedor_id, ubicacion_id, estante_id,
nivel_id, fila_id, stock_actual, stock_minimo, stock_maximo, precio_compra, precio_venta,
unidad_medida, activo, eliminado, eliminado_at, motivo_eliminacion, eliminado_por, created_at, updated_at`

func scanPart(row pgx.Row) (Repuesto, error) {
	var p Repuesto
	err := row.Scan(&p.ID, &p.Codigo, &p.Nombre, &p.Descripcion, &p.CategoriaID, &p.ProveedorID,
		&p.UbicacionID, &p.EstanteID, &p.NivelID, &p.FilaID, &p.StockActual, &p.StockMinimo,
		&p.StockMaximo, &p.PrecioCompra, &p.PrecioVenta, &p.UnidadMedida, &p.Activo, &p.Eliminado,
		&p.EliminadoAt, &p.MotivoEliminacion, &p.EliminadoPor, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Repuesto{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) Insert(ctx context.Context, p Repuesto) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO repuestos
(codigo, nombre, descripcion, categoria_id, proveedor_id, ubicacion_id, estante_id, nivel_id, fila_id,
 stock_actual, stock_minimo, stock_maximo, precio_compra, precio_venta, unidad_medida, activo, eliminado, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,TRUE,FALSE,NOW(),NOW())
RETURNING id`,
		p.Codigo, p.Nombre, p.Descripcion, p.CategoriaID, p.ProveedorID, p.UbicacionID, p.EstanteID,
		p.NivelID, p.FilaID, p.StockActual, p.StockMinimo, p.StockMaximo, p.PrecioCompra, p.PrecioVenta,
		p.UnidadMedida).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

// Update rewrites the editable columns. stock_actual is deliberately not in
// the SET list; it only moves through inventory movements.
func (r *Repository) Update(ctx context.Context, p Repuesto) error {
	tag, err := r.pool.Exec(ctx, `UPDATE repuestos SET
codigo=$2, nombre=$3, descripcion=$4, categoria_id=$5, proveedor_id=$6, ubicacion_id=$7, estante_id=$8,
nivel_id=$9, fila_id=$10, stock_minimo=$11, stock_maximo=$12, precio_compra=$13, precio_venta=$14,
unidad_medida=$15, updated_at=NOW()
WHERE id=$1 AND NOT eliminado`,
		p.ID, p.Codigo, p.Nombre, p.Descripcion, p.CategoriaID, p.ProveedorID, p.UbicacionID, p.EstanteID,
		p.NivelID, p.FilaID, p.StockMinimo, p.StockMaximo, p.PrecioCompra, p.PrecioVenta, p.UnidadMedida)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetActivo(ctx context.Context, id int64, activo bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE repuestos SET activo=$2, updated_at=NOW() WHERE id=$1 AND NOT eliminado`, id, activo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Repuesto, error) {
	return scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM repuestos WHERE id=$1`, id))
}

// GetByCode resolves a part by business code, excluding deleted rows.
func (r *Repository) GetByCode(ctx context.Context, codigo string) (Repuesto, error) {
	return scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM repuestos WHERE codigo=$1 AND NOT eliminado`, codigo))
}

// CodeExists probes code uniqueness over non-deleted rows only.
func (r *Repository) CodeExists(ctx context.Context, codigo string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM repuestos WHERE codigo=$1 AND NOT eliminado AND id <> $2)`,
		codigo, excludeID).Scan(&exists)
	return exists, err
}

// List pages the registry. The bodega scope is applied through the part's
// shelf or zone; parts with no physical location are always visible.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Repuesto, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	search := shared.FoldSearchTerm(filters.Search)
	where := `FROM repuestos r
LEFT JOIN ubicaciones u ON u.id = r.ubicacion_id
LEFT JOIN estantes e ON e.id = r.estante_id
LEFT JOIN ubicaciones eu ON eu.id = e.ubicacion_id
WHERE NOT r.eliminado
  AND (NOT $1 OR r.activo)
  AND ($2 = 0 OR r.categoria_id = $2)
  AND ($3 = 0 OR r.proveedor_id = $3)
  AND ($4 = 0 OR r.ubicacion_id = $4)
  AND (NOT $5 OR r.stock_actual <= r.stock_minimo)
  AND ($6 = '' OR upper(r.codigo) LIKE '%'||$6||'%' OR upper(r.nombre) LIKE '%'||$6||'%')
  AND ($7::bigint[] IS NULL
       OR COALESCE(eu.bodega_id, u.bodega_id) = ANY($7)
       OR (r.ubicacion_id IS NULL AND r.estante_id IS NULL))`
	args := []any{filters.OnlyActive, filters.CategoriaID, filters.ProveedorID, filters.UbicacionID,
		filters.LowStock, search, filters.BodegaIDs}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT r.id, r.codigo, r.nombre, r.descripcion, r.categoria_id, r.proveedor_id,
r.ubicacion_id, r.estante_id, r.nivel_id, r.fila_id, r.stock_actual, r.stock_minimo, r.stock_maximo,
r.precio_compra, r.precio_venta, r.unidad_medida, r.activo, r.eliminado, r.eliminado_at,
r.motivo_eliminacion, r.eliminado_por, r.created_at, r.updated_at %s
ORDER BY r.codigo
LIMIT %d OFFSET %d`, where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Repuesto{}
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// SnapshotNames resolves category and supplier display names for the
// deletion snapshot.
func (r *Repository) SnapshotNames(ctx context.Context, p Repuesto) (categoria, proveedor string, err error) {
	if p.CategoriaID != nil {
		if err = r.pool.QueryRow(ctx, `SELECT nombre FROM categorias_repuesto WHERE id=$1`, *p.CategoriaID).Scan(&categoria); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return "", "", err
		}
	}
	if p.ProveedorID != nil {
		if err = r.pool.QueryRow(ctx, `SELECT nombre FROM proveedores WHERE id=$1`, *p.ProveedorID).Scan(&proveedor); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return "", "", err
		}
	}
	return categoria, proveedor, nil
}

func (tx *txRepository) GetForUpdate(ctx context.Context, id int64) (Repuesto, error) {
	return scanPart(tx.tx.QueryRow(ctx, `SELECT `+partColumns+` FROM repuestos WHERE id=$1 FOR UPDATE`, id))
}

func (tx *txRepository) MarkDeleted(ctx context.Context, id int64, newCode, reason string, actorID int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE repuestos SET
codigo=$2, activo=FALSE, eliminado=TRUE, eliminado_at=NOW(), motivo_eliminacion=$3, eliminado_por=$4, updated_at=NOW()
WHERE id=$1 AND NOT eliminado`, id, newCode, reason, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEditDeleted
	}
	return nil
}

func (tx *txRepository) Raw() pgx.Tx { return tx.tx }
