package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit row. Uses the pool directly; callers that need the
// row inside their own transaction use InsertTx.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO auditoria (actor_id, modulo, accion, ref_id, meta, occurred_at)
VALUES ($1,$2,$3,$4,$5,COALESCE(NULLIF($6, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		entry.ActorID, entry.Module, entry.Action, entry.RefID, meta, entry.OccurredAt)
	return err
}

// InsertTx appends one audit row inside an existing transaction.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO auditoria (actor_id, modulo, accion, ref_id, meta, occurred_at)
VALUES ($1,$2,$3,$4,$5,NOW())`, entry.ActorID, entry.Module, entry.Action, entry.RefID, meta)
	return err
}

// InsertDeletionTx writes the part deletion registry row inside the deletion
// transaction so snapshot and code rewrite commit together.
func (r *Repository) InsertDeletionTx(ctx context.Context, tx pgx.Tx, record DeletionRecord) error {
	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO registro_eliminacion_repuestos (repuesto_id, actor_id, motivo, snapshot, deleted_at)
VALUES ($1,$2,$3,$4,NOW())`, record.RepuestoID, record.ActorID, record.Reason, snapshot)
	return err
}

// Timeline lists audit rows newest first.
func (r *Repository) Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, int, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	from := filters.From
	if from.IsZero() {
		from = time.Now().AddDate(-1, 0, 0)
	}
	to := filters.To
	if to.IsZero() {
		to = time.Now()
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auditoria
WHERE occurred_at BETWEEN $1 AND $2
  AND ($3 = '' OR modulo = $3)
  AND ($4 = '' OR accion = $4)
  AND ($5 = 0 OR actor_id = $5)`, from, to, filters.Module, filters.Action, filters.ActorID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, modulo, accion, ref_id, meta, occurred_at FROM auditoria
WHERE occurred_at BETWEEN $1 AND $2
  AND ($3 = '' OR modulo = $3)
  AND ($4 = '' OR accion = $4)
  AND ($5 = 0 OR actor_id = $5)
ORDER BY occurred_at DESC, id DESC
LIMIT $6 OFFSET $7`, from, to, filters.Module, filters.Action, filters.ActorID, limit, filters.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Module, &entry.Action, &entry.RefID, &meta, &entry.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &entry.Meta)
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// GetDeletionRecord loads a deletion registry row by part id.
func (r *Repository) GetDeletionRecord(ctx context.Context, repuestoID int64) (DeletionRecord, error) {
	var record DeletionRecord
	var snapshot []byte
	err := r.pool.QueryRow(ctx, `SELECT id, repuesto_id, actor_id, motivo, snapshot, deleted_at
FROM registro_eliminacion_repuestos WHERE repuesto_id=$1 ORDER BY id DESC LIMIT 1`, repuestoID).
		Scan(&record.ID, &record.RepuestoID, &record.ActorID, &record.Reason, &snapshot, &record.DeletedAt)
	if err != nil {
		return DeletionRecord{}, err
	}
	if err := json.Unmarshal(snapshot, &record.Snapshot); err != nil {
		return DeletionRecord{}, err
	}
	return record, nil
}
