package locations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallerpro/tallerpro/internal/platform/db"
)

// Repository persists the storage-location graph in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertBodega(ctx context.Context, b Bodega) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bodegas (nombre, activo) VALUES ($1, TRUE) RETURNING id`, b.Nombre).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateName
	}
	return id, err
}

func (r *Repository) UpdateBodega(ctx context.Context, b Bodega) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bodegas SET nombre=$2, activo=$3 WHERE id=$1`, b.ID, b.Nombre, b.Activo)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBodegaNotFound
	}
	return nil
}

func (r *Repository) GetBodega(ctx context.Context, id int64) (Bodega, error) {
	var b Bodega
	err := r.pool.QueryRow(ctx, `SELECT id, nombre, activo FROM bodegas WHERE id=$1`, id).
		Scan(&b.ID, &b.Nombre, &b.Activo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bodega{}, ErrBodegaNotFound
	}
	return b, err
}

func (r *Repository) ListBodegas(ctx context.Context, onlyActive bool) ([]Bodega, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nombre, activo FROM bodegas WHERE NOT $1 OR activo ORDER BY nombre`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Bodega{}
	for rows.Next() {
		var b Bodega
		if err := rows.Scan(&b.ID, &b.Nombre, &b.Activo); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *Repository) InsertUbicacion(ctx context.Context, u Ubicacion) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO ubicaciones (bodega_id, codigo, nombre, activo) VALUES ($1,$2,$3,TRUE) RETURNING id`,
		u.BodegaID, u.Codigo, u.Nombre).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) UpdateUbicacion(ctx context.Context, u Ubicacion) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ubicaciones SET codigo=$2, nombre=$3, activo=$4 WHERE id=$1`,
		u.ID, u.Codigo, u.Nombre, u.Activo)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUbicacionNotFound
	}
	return nil
}

func (r *Repository) GetUbicacion(ctx context.Context, id int64) (Ubicacion, error) {
	var u Ubicacion
	err := r.pool.QueryRow(ctx, `SELECT id, bodega_id, codigo, nombre, activo FROM ubicaciones WHERE id=$1`, id).
		Scan(&u.ID, &u.BodegaID, &u.Codigo, &u.Nombre, &u.Activo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ubicacion{}, ErrUbicacionNotFound
	}
	return u, err
}

func (r *Repository) ListUbicaciones(ctx context.Context, bodegaID int64) ([]Ubicacion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, bodega_id, codigo, nombre, activo FROM ubicaciones
WHERE ($1 = 0 OR bodega_id = $1) ORDER BY codigo`, bodegaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Ubicacion{}
	for rows.Next() {
		var u Ubicacion
		if err := rows.Scan(&u.ID, &u.BodegaID, &u.Codigo, &u.Nombre, &u.Activo); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *Repository) InsertEstante(ctx context.Context, e Estante) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO estantes (ubicacion_id, codigo, nombre, activo) VALUES ($1,$2,$3,TRUE) RETURNING id`,
		e.UbicacionID, e.Codigo, e.Nombre).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) UpdateEstante(ctx context.Context, e Estante) error {
	tag, err := r.pool.Exec(ctx, `UPDATE estantes SET codigo=$2, nombre=$3, activo=$4 WHERE id=$1`,
		e.ID, e.Codigo, e.Nombre, e.Activo)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEstanteNotFound
	}
	return nil
}

func (r *Repository) ListEstantes(ctx context.Context, ubicacionID int64) ([]Estante, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ubicacion_id, codigo, nombre, activo FROM estantes
WHERE ($1 = 0 OR ubicacion_id = $1) ORDER BY codigo`, ubicacionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Estante{}
	for rows.Next() {
		var e Estante
		if err := rows.Scan(&e.ID, &e.UbicacionID, &e.Codigo, &e.Nombre, &e.Activo); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *Repository) InsertNivel(ctx context.Context, codigo string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO niveles (codigo, activo) VALUES ($1, TRUE) RETURNING id`, codigo).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) InsertFila(ctx context.Context, codigo string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO filas (codigo, activo) VALUES ($1, TRUE) RETURNING id`, codigo).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) ListNiveles(ctx context.Context) ([]Nivel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, codigo, activo FROM niveles ORDER BY codigo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Nivel{}
	for rows.Next() {
		var n Nivel
		if err := rows.Scan(&n.ID, &n.Codigo, &n.Activo); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *Repository) ListFilas(ctx context.Context) ([]Fila, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, codigo, activo FROM filas ORDER BY codigo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Fila{}
	for rows.Next() {
		var f Fila
		if err := rows.Scan(&f.ID, &f.Codigo, &f.Activo); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *Repository) AssignUserBodega(ctx context.Context, userID, bodegaID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO usuario_bodegas (usuario_id, bodega_id)
VALUES ($1,$2) ON CONFLICT DO NOTHING`, userID, bodegaID)
	return err
}

func (r *Repository) RemoveUserBodega(ctx context.Context, userID, bodegaID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM usuario_bodegas WHERE usuario_id=$1 AND bodega_id=$2`, userID, bodegaID)
	return err
}

func (r *Repository) UserBodegas(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT bodega_id FROM usuario_bodegas WHERE usuario_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
