package parts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/locations"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, p Repuesto) (int64, error)
	Update(ctx context.Context, p Repuesto) error
	SetActivo(ctx context.Context, id int64, activo bool) error
	GetByID(ctx context.Context, id int64) (Repuesto, error)
	GetByCode(ctx context.Context, codigo string) (Repuesto, error)
	CodeExists(ctx context.Context, codigo string, excludeID int64) (bool, error)
	List(ctx context.Context, filters ListFilters) ([]Repuesto, int, error)
	SnapshotNames(ctx context.Context, p Repuesto) (categoria, proveedor string, err error)
	InsertCompatibilidad(ctx context.Context, c Compatibilidad) (int64, error)
	DeleteCompatibilidad(ctx context.Context, id int64) error
	ListCompatibilidades(ctx context.Context, repuestoID int64) ([]Compatibilidad, error)
	InsertCategoria(ctx context.Context, nombre string) (int64, error)
	ListCategorias(ctx context.Context) ([]Categoria, error)
	DeactivateCategoria(ctx context.Context, id int64) error
	HardDeleteCategoria(ctx context.Context, id int64) error
	InsertProveedor(ctx context.Context, p Proveedor) (int64, error)
	GetProveedor(ctx context.Context, id int64) (Proveedor, error)
	ListProveedores(ctx context.Context) ([]Proveedor, error)
}

// ScopePort resolves the caller's bodega visibility.
type ScopePort interface {
	VisibleScope(ctx context.Context, actor shared.Actor) (locations.Scope, error)
}

// AuditPort records privileged actions and the deletion registry.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
	RecordPartDeletionTx(ctx context.Context, tx pgx.Tx, actorID int64, snapshot audit.PartSnapshot, reason string) error
}

// Service owns the spare-part registry.
type Service struct {
	repo  RepositoryPort
	scope ScopePort
	audit AuditPort
}

// NewService constructs the parts service.
func NewService(repo RepositoryPort, scope ScopePort, auditor AuditPort) *Service {
	return &Service{repo: repo, scope: scope, audit: auditor}
}

// CreateInput describes a new part.
type CreateInput struct {
	Codigo       string
	Nombre       string
	Descripcion  string
	CategoriaID  *int64
	ProveedorID  *int64
	UbicacionID  *int64
	EstanteID    *int64
	NivelID      *int64
	FilaID       *int64
	StockMinimo  int64
	StockMaximo  int64
	PrecioCompra decimal.Decimal
	PrecioVenta  decimal.Decimal
	UnidadMedida string
}

// UpdateInput edits a part. StockActual is accepted only to detect and reject
// attempts to mutate stock through the registry.
type UpdateInput struct {
	ID           int64
	Codigo       string
	Nombre       string
	Descripcion  string
	CategoriaID  *int64
	ProveedorID  *int64
	UbicacionID  *int64
	EstanteID    *int64
	NivelID      *int64
	FilaID       *int64
	StockMinimo  int64
	StockMaximo  int64
	StockActual  *int64
	PrecioCompra decimal.Decimal
	PrecioVenta  decimal.Decimal
	UnidadMedida string
}

func validatePart(codigo, nombre string, stockMin, stockMax int64, compra, venta decimal.Decimal) error {
	if codigo == "" {
		return ErrMissingCode
	}
	if strings.TrimSpace(nombre) == "" {
		return ErrMissingName
	}
	if stockMin < 0 || stockMax < 1 || stockMax < stockMin {
		return ErrInvalidStock
	}
	if compra.IsNegative() || venta.LessThan(compra) {
		return ErrInvalidPrice
	}
	return nil
}

// Create registers a part. The code is uppercased; uniqueness is checked over
// non-deleted rows only.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Repuesto, error) {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return Repuesto{}, err
	}
	codigo := strings.ToUpper(strings.TrimSpace(input.Codigo))
	if err := validatePart(codigo, input.Nombre, input.StockMinimo, input.StockMaximo, input.PrecioCompra, input.PrecioVenta); err != nil {
		return Repuesto{}, err
	}
	exists, err := s.repo.CodeExists(ctx, codigo, 0)
	if err != nil {
		return Repuesto{}, err
	}
	if exists {
		return Repuesto{}, ErrDuplicateCode
	}
	part := Repuesto{
		Codigo:       codigo,
		Nombre:       strings.TrimSpace(input.Nombre),
		Descripcion:  input.Descripcion,
		CategoriaID:  input.CategoriaID,
		ProveedorID:  input.ProveedorID,
		UbicacionID:  input.UbicacionID,
		EstanteID:    input.EstanteID,
		NivelID:      input.NivelID,
		FilaID:       input.FilaID,
		StockMinimo:  input.StockMinimo,
		StockMaximo:  input.StockMaximo,
		PrecioCompra: input.PrecioCompra,
		PrecioVenta:  input.PrecioVenta,
		UnidadMedida: input.UnidadMedida,
		Activo:       true,
	}
	id, err := s.repo.Insert(ctx, part)
	if err != nil {
		return Repuesto{}, err
	}
	part.ID = id
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "repuestos", Action: "CREAR", RefID: codigo,
		Meta: map[string]any{"repuesto_id": id},
	})
	return part, nil
}

// Update edits a part. Deleted parts reject edits; direct stock mutation is
// rejected regardless of role.
func (s *Service) Update(ctx context.Context, actor shared.Actor, input UpdateInput) (Repuesto, error) {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return Repuesto{}, err
	}
	current, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return Repuesto{}, err
	}
	if current.Eliminado {
		return Repuesto{}, ErrEditDeleted
	}
	if input.StockActual != nil && *input.StockActual != current.StockActual {
		return Repuesto{}, ErrStockDirectEdit
	}
	codigo := strings.ToUpper(strings.TrimSpace(input.Codigo))
	if err := validatePart(codigo, input.Nombre, input.StockMinimo, input.StockMaximo, input.PrecioCompra, input.PrecioVenta); err != nil {
		return Repuesto{}, err
	}
	if codigo != current.Codigo {
		exists, err := s.repo.CodeExists(ctx, codigo, input.ID)
		if err != nil {
			return Repuesto{}, err
		}
		if exists {
			return Repuesto{}, ErrDuplicateCode
		}
	}
	current.Codigo = codigo
	current.Nombre = strings.TrimSpace(input.Nombre)
	current.Descripcion = input.Descripcion
	current.CategoriaID = input.CategoriaID
	current.ProveedorID = input.ProveedorID
	current.UbicacionID = input.UbicacionID
	current.EstanteID = input.EstanteID
	current.NivelID = input.NivelID
	current.FilaID = input.FilaID
	current.StockMinimo = input.StockMinimo
	current.StockMaximo = input.StockMaximo
	current.PrecioCompra = input.PrecioCompra
	current.PrecioVenta = input.PrecioVenta
	current.UnidadMedida = input.UnidadMedida
	if err := s.repo.Update(ctx, current); err != nil {
		return Repuesto{}, err
	}
	return current, nil
}

// GetByID loads a part, deleted or not. History rows stay resolvable.
func (s *Service) GetByID(ctx context.Context, actor shared.Actor, id int64) (Repuesto, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return Repuesto{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// GetByCode resolves a business code among non-deleted parts.
func (s *Service) GetByCode(ctx context.Context, actor shared.Actor, codigo string) (Repuesto, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return Repuesto{}, err
	}
	return s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(codigo)))
}

// List pages the registry applying the caller's bodega scope.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]Repuesto, shared.Pagination, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, shared.Pagination{}, err
	}
	scope, err := s.scope.VisibleScope(ctx, actor)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !scope.All {
		filters.BodegaIDs = scope.BodegaIDs
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// SoftDelete deactivates a part. The code remains taken.
func (s *Service) SoftDelete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return err
	}
	part, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if part.Eliminado {
		return ErrEditDeleted
	}
	if err := s.repo.SetActivo(ctx, id, false); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "repuestos", Action: "DESACTIVAR", RefID: part.Codigo,
		Meta: map[string]any{"repuesto_id": id},
	})
	return nil
}

// Reactivate re-enables a soft-deleted part.
func (s *Service) Reactivate(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return err
	}
	part, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if part.Eliminado {
		return ErrEditDeleted
	}
	return s.repo.SetActivo(ctx, id, true)
}

// PermanentDelete is ADMIN-only. It rewrites the code to free it for reuse,
// marks the row deleted and writes the deletion registry with a JSON snapshot,
// all in one transaction.
func (s *Service) PermanentDelete(ctx context.Context, actor shared.Actor, id int64, reason string) error {
	if !actor.IsAdmin() {
		return shared.ErrPermissionDenied
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < MinDeleteReasonLen {
		return ErrReasonTooShort
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		part, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if part.Eliminado {
			return ErrEditDeleted
		}
		categoria, proveedor, err := s.repo.SnapshotNames(ctx, part)
		if err != nil {
			return err
		}
		newCode := fmt.Sprintf("%s%s%d", part.Codigo, deletedCodeSuffix, part.ID)
		if err := tx.MarkDeleted(ctx, id, newCode, reason, actor.UserID); err != nil {
			return err
		}
		snapshot := audit.PartSnapshot{
			RepuestoID:      part.ID,
			Codigo:          part.Codigo,
			Nombre:          part.Nombre,
			StockActual:     part.StockActual,
			PrecioCompra:    part.PrecioCompra,
			PrecioVenta:     part.PrecioVenta,
			CategoriaNombre: categoria,
			ProveedorNombre: proveedor,
		}
		return s.audit.RecordPartDeletionTx(ctx, tx.Raw(), actor.UserID, snapshot, reason)
	})
}

// AddCompatibilidad attaches a vehicle compatibility row.
func (s *Service) AddCompatibilidad(ctx context.Context, actor shared.Actor, c Compatibilidad) (Compatibilidad, error) {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return Compatibilidad{}, err
	}
	if c.AnioDesde != nil && c.AnioHasta != nil && *c.AnioDesde > *c.AnioHasta {
		return Compatibilidad{}, ErrInvalidYears
	}
	part, err := s.repo.GetByID(ctx, c.RepuestoID)
	if err != nil {
		return Compatibilidad{}, err
	}
	if part.Eliminado {
		return Compatibilidad{}, ErrEditDeleted
	}
	id, err := s.repo.InsertCompatibilidad(ctx, c)
	if err != nil {
		return Compatibilidad{}, err
	}
	c.ID = id
	return c, nil
}

// RemoveCompatibilidad drops a compatibility row.
func (s *Service) RemoveCompatibilidad(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return err
	}
	return s.repo.DeleteCompatibilidad(ctx, id)
}

// ListCompatibilidades lists a part's compatibility rows.
func (s *Service) ListCompatibilidades(ctx context.Context, actor shared.Actor, repuestoID int64) ([]Compatibilidad, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, err
	}
	return s.repo.ListCompatibilidades(ctx, repuestoID)
}

// CreateCategoria adds a category.
func (s *Service) CreateCategoria(ctx context.Context, actor shared.Actor, nombre string) (Categoria, error) {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return Categoria{}, err
	}
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return Categoria{}, ErrMissingName
	}
	id, err := s.repo.InsertCategoria(ctx, nombre)
	if err != nil {
		return Categoria{}, err
	}
	return Categoria{ID: id, Nombre: nombre, Activo: true}, nil
}

// ListCategorias lists categories.
func (s *Service) ListCategorias(ctx context.Context, actor shared.Actor) ([]Categoria, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, err
	}
	return s.repo.ListCategorias(ctx)
}

// DeleteCategoria deactivates a category, or removes it entirely when forced
// by an administrator and no part references it.
func (s *Service) DeleteCategoria(ctx context.Context, actor shared.Actor, id int64, force bool) error {
	if force {
		if !actor.IsAdmin() {
			return shared.ErrPermissionDenied
		}
		if err := s.repo.HardDeleteCategoria(ctx, id); err != nil {
			return err
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID: actor.UserID, Module: "categorias", Action: "ELIMINAR", RefID: fmt.Sprintf("%d", id),
		})
		return nil
	}
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return err
	}
	return s.repo.DeactivateCategoria(ctx, id)
}

// CreateProveedor adds a supplier.
func (s *Service) CreateProveedor(ctx context.Context, actor shared.Actor, p Proveedor) (Proveedor, error) {
	if err := actor.Require(shared.PermPartsEdit); err != nil {
		return Proveedor{}, err
	}
	p.Nombre = strings.TrimSpace(p.Nombre)
	if p.Nombre == "" {
		return Proveedor{}, ErrMissingName
	}
	id, err := s.repo.InsertProveedor(ctx, p)
	if err != nil {
		return Proveedor{}, err
	}
	p.ID = id
	p.Activo = true
	return p, nil
}

// ListProveedores lists active suppliers.
func (s *Service) ListProveedores(ctx context.Context, actor shared.Actor) ([]Proveedor, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, err
	}
	return s.repo.ListProveedores(ctx)
}
