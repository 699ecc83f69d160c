package parts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tallerpro/tallerpro/internal/platform/db"
)

func (r *Repository) InsertCategoria(ctx context.Context, nombre string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO categorias_repuesto (nombre, activo) VALUES ($1, TRUE) RETURNING id`, nombre).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) ListCategorias(ctx context.Context) ([]Categoria, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nombre, activo FROM categorias_repuesto ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Categoria{}
	for rows.Next() {
		var c Categoria
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Activo); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *Repository) DeactivateCategoria(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categorias_repuesto SET activo=FALSE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoriaNotFound
	}
	return nil
}

// HardDeleteCategoria removes an empty category row entirely.
func (r *Repository) HardDeleteCategoria(ctx context.Context, id int64) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repuestos WHERE categoria_id=$1`, id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoriaInUse
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM categorias_repuesto WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoriaNotFound
	}
	return nil
}

func (r *Repository) InsertProveedor(ctx context.Context, p Proveedor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO proveedores (nombre, email, telefono, activo) VALUES ($1,$2,$3,TRUE) RETURNING id`,
		p.Nombre, p.Email, p.Telefono).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (r *Repository) GetProveedor(ctx context.Context, id int64) (Proveedor, error) {
	var p Proveedor
	err := r.pool.QueryRow(ctx, `SELECT id, nombre, email, telefono, activo FROM proveedores WHERE id=$1`, id).
		Scan(&p.ID, &p.Nombre, &p.Email, &p.Telefono, &p.Activo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proveedor{}, ErrProveedorNotFound
	}
	return p, err
}

func (r *Repository) ListProveedores(ctx context.Context) ([]Proveedor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nombre, email, telefono, activo FROM proveedores WHERE activo ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Proveedor{}
	for rows.Next() {
		var p Proveedor
		if err := rows.Scan(&p.ID, &p.Nombre, &p.Email, &p.Telefono, &p.Activo); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *Repository) InsertCompatibilidad(ctx context.Context, c Compatibilidad) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO repuesto_compatibilidades (repuesto_id, marca, modelo, anio_desde, anio_hasta, motor)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		c.RepuestoID, c.Marca, c.Modelo, c.AnioDesde, c.AnioHasta, c.Motor).Scan(&id)
	return id, err
}

func (r *Repository) DeleteCompatibilidad(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM repuesto_compatibilidades WHERE id=$1`, id)
	return err
}

func (r *Repository) ListCompatibilidades(ctx context.Context, repuestoID int64) ([]Compatibilidad, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, repuesto_id, marca, modelo, anio_desde, anio_hasta, motor
FROM repuesto_compatibilidades WHERE repuesto_id=$1 ORDER BY marca, modelo`, repuestoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Compatibilidad{}
	for rows.Next() {
		var c Compatibilidad
		if err := rows.Scan(&c.ID, &c.RepuestoID, &c.Marca, &c.Modelo, &c.AnioDesde, &c.AnioHasta, &c.Motor); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
