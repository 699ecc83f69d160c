package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repository persists alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const alertColumns = `id, tipo, severidad, estado, repuesto_id, turno_id, mensaje, meta, created_at,
acknowledged_by, acknowledged_at, closed_at`

func scanAlert(row pgx.Row) (Alerta, error) {
	var a Alerta
	var meta []byte
	err := row.Scan(&a.ID, &a.Tipo, &a.Severidad, &a.Estado, &a.RepuestoID, &a.TurnoID, &a.Mensaje,
		&meta, &a.CreatedAt, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alerta{}, ErrAlertNotFound
	}
	if err != nil {
		return Alerta{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &a.Meta)
	}
	return a, nil
}

// Insert appends an alert.
func (r *Repository) Insert(ctx context.Context, a Alerta) (int64, error) {
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO alertas
(tipo, severidad, estado, repuesto_id, turno_id, mensaje, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING id`,
		a.Tipo, a.Severidad, StateOpen, a.RepuestoID, a.TurnoID, a.Mensaje, meta).Scan(&id)
	return id, err
}

// HasOpenForPart reports whether the part already carries an open alert of
// the kind.
func (r *Repository) HasOpenForPart(ctx context.Context, tipo AlertKind, repuestoID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM alertas WHERE tipo=$1 AND repuesto_id=$2 AND estado <> $3)`,
		tipo, repuestoID, StateClosed).Scan(&exists)
	return exists, err
}

// HasOpenForShift reports whether the shift already carries an open alert of
// the kind.
func (r *Repository) HasOpenForShift(ctx context.Context, tipo AlertKind, turnoID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM alertas WHERE tipo=$1 AND turno_id=$2 AND estado <> $3)`,
		tipo, turnoID, StateClosed).Scan(&exists)
	return exists, err
}

// CloseForPart closes every open alert of the kind for the part.
func (r *Repository) CloseForPart(ctx context.Context, tipo AlertKind, repuestoID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE alertas SET estado=$3, closed_at=NOW()
WHERE tipo=$1 AND repuesto_id=$2 AND estado <> $3`, tipo, repuestoID, StateClosed)
	return err
}

// PartStock reads the part's stock figures for the reconciler.
func (r *Repository) PartStock(ctx context.Context, repuestoID int64) (codigo string, actual, minimo int64, eliminado bool, err error) {
	err = r.pool.QueryRow(ctx, `SELECT codigo, stock_actual, stock_minimo, eliminado FROM repuestos WHERE id=$1`, repuestoID).
		Scan(&codigo, &actual, &minimo, &eliminado)
	if errors.Is(err, pgx.ErrNoRows) {
		err = shared.E(shared.KindNotFound, "PART_NOT_FOUND", "repuesto no encontrado")
	}
	return codigo, actual, minimo, eliminado, err
}

// OpenShiftsOlderThan lists OPEN cash shifts opened before the cutoff.
func (r *Repository) OpenShiftsOlderThan(ctx context.Context, cutoff time.Time) ([]ShiftClose, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, usuario_id FROM caja_turnos WHERE estado='ABIERTO' AND opened_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ShiftClose{}
	for rows.Next() {
		var s ShiftClose
		if err := rows.Scan(&s.TurnoID, &s.UserID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads one alert.
func (r *Repository) Get(ctx context.Context, id int64) (Alerta, error) {
	return scanAlert(r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alertas WHERE id=$1`, id))
}

// Acknowledge marks an open alert as seen.
func (r *Repository) Acknowledge(ctx context.Context, id, actorID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alertas SET estado=$2, acknowledged_by=$3, acknowledged_at=NOW()
WHERE id=$1 AND estado=$4`, id, StateAcknowledged, actorID, StateOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertClosed
	}
	return nil
}

// List pages alerts, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Alerta, int, error) {
	page := shared.NewPagination(filters.Page, filters.PerPage, 0)
	where := `FROM alertas
WHERE ($1 = '' OR tipo = $1)
  AND ($2 = '' OR estado = $2)
  AND ($3 = 0 OR repuesto_id = $3)`
	args := []any{string(filters.Tipo), filters.Estado, filters.RepuestoID}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+alertColumns+` %s ORDER BY id DESC LIMIT %d OFFSET %d`,
		where, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Alerta{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
