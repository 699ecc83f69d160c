package locations

import (
	"context"
	"strings"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	InsertBodega(ctx context.Context, b Bodega) (int64, error)
	UpdateBodega(ctx context.Context, b Bodega) error
	GetBodega(ctx context.Context, id int64) (Bodega, error)
	ListBodegas(ctx context.Context, onlyActive bool) ([]Bodega, error)
	InsertUbicacion(ctx context.Context, u Ubicacion) (int64, error)
	UpdateUbicacion(ctx context.Context, u Ubicacion) error
	GetUbicacion(ctx context.Context, id int64) (Ubicacion, error)
	ListUbicaciones(ctx context.Context, bodegaID int64) ([]Ubicacion, error)
	InsertEstante(ctx context.Context, e Estante) (int64, error)
	UpdateEstante(ctx context.Context, e Estante) error
	ListEstantes(ctx context.Context, ubicacionID int64) ([]Estante, error)
	InsertNivel(ctx context.Context, codigo string) (int64, error)
	InsertFila(ctx context.Context, codigo string) (int64, error)
	ListNiveles(ctx context.Context) ([]Nivel, error)
	ListFilas(ctx context.Context) ([]Fila, error)
	AssignUserBodega(ctx context.Context, userID, bodegaID int64) error
	RemoveUserBodega(ctx context.Context, userID, bodegaID int64) error
	UserBodegas(ctx context.Context, userID int64) ([]int64, error)
}

// Service exposes the storage-location graph operations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateBodega registers a warehouse with a unique name.
func (s *Service) CreateBodega(ctx context.Context, actor shared.Actor, nombre string) (Bodega, error) {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return Bodega{}, err
	}
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return Bodega{}, ErrMissingName
	}
	id, err := s.repo.InsertBodega(ctx, Bodega{Nombre: nombre})
	if err != nil {
		return Bodega{}, err
	}
	return Bodega{ID: id, Nombre: nombre, Activo: true}, nil
}

// UpdateBodega renames or toggles a warehouse.
func (s *Service) UpdateBodega(ctx context.Context, actor shared.Actor, b Bodega) error {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return err
	}
	b.Nombre = strings.TrimSpace(b.Nombre)
	if b.Nombre == "" {
		return ErrMissingName
	}
	return s.repo.UpdateBodega(ctx, b)
}

// DeactivateBodega soft-deletes a warehouse.
func (s *Service) DeactivateBodega(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return err
	}
	b, err := s.repo.GetBodega(ctx, id)
	if err != nil {
		return err
	}
	b.Activo = false
	return s.repo.UpdateBodega(ctx, b)
}

// ListBodegas lists warehouses visible to the caller.
func (s *Service) ListBodegas(ctx context.Context, actor shared.Actor, onlyActive bool) ([]Bodega, error) {
	if err := actor.Require(shared.PermLocationsView); err != nil {
		return nil, err
	}
	items, err := s.repo.ListBodegas(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	scope, err := s.VisibleScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scope.All {
		return items, nil
	}
	allowed := map[int64]bool{}
	for _, id := range scope.BodegaIDs {
		allowed[id] = true
	}
	filtered := items[:0]
	for _, b := range items {
		if allowed[b.ID] {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// CreateUbicacion registers a zone; (bodega, codigo) must be unique.
func (s *Service) CreateUbicacion(ctx context.Context, actor shared.Actor, u Ubicacion) (Ubicacion, error) {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return Ubicacion{}, err
	}
	u.Codigo = strings.ToUpper(strings.TrimSpace(u.Codigo))
	if u.Codigo == "" {
		return Ubicacion{}, ErrMissingCode
	}
	if _, err := s.repo.GetBodega(ctx, u.BodegaID); err != nil {
		return Ubicacion{}, err
	}
	id, err := s.repo.InsertUbicacion(ctx, u)
	if err != nil {
		return Ubicacion{}, err
	}
	u.ID = id
	u.Activo = true
	return u, nil
}

// UpdateUbicacion edits a zone.
func (s *Service) UpdateUbicacion(ctx context.Context, actor shared.Actor, u Ubicacion) error {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return err
	}
	u.Codigo = strings.ToUpper(strings.TrimSpace(u.Codigo))
	if u.Codigo == "" {
		return ErrMissingCode
	}
	return s.repo.UpdateUbicacion(ctx, u)
}

// CreateEstante registers a shelf; (ubicacion, codigo) must be unique.
func (s *Service) CreateEstante(ctx context.Context, actor shared.Actor, e Estante) (Estante, error) {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return Estante{}, err
	}
	e.Codigo = strings.ToUpper(strings.TrimSpace(e.Codigo))
	if e.Codigo == "" {
		return Estante{}, ErrMissingCode
	}
	if _, err := s.repo.GetUbicacion(ctx, e.UbicacionID); err != nil {
		return Estante{}, err
	}
	id, err := s.repo.InsertEstante(ctx, e)
	if err != nil {
		return Estante{}, err
	}
	e.ID = id
	e.Activo = true
	return e, nil
}

// UpdateEstante edits a shelf.
func (s *Service) UpdateEstante(ctx context.Context, actor shared.Actor, e Estante) error {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return err
	}
	e.Codigo = strings.ToUpper(strings.TrimSpace(e.Codigo))
	if e.Codigo == "" {
		return ErrMissingCode
	}
	return s.repo.UpdateEstante(ctx, e)
}

// ListUbicaciones lists zones, optionally per bodega.
func (s *Service) ListUbicaciones(ctx context.Context, actor shared.Actor, bodegaID int64) ([]Ubicacion, error) {
	if err := actor.Require(shared.PermLocationsView); err != nil {
		return nil, err
	}
	return s.repo.ListUbicaciones(ctx, bodegaID)
}

// ListEstantes lists shelves, optionally per ubicacion.
func (s *Service) ListEstantes(ctx context.Context, actor shared.Actor, ubicacionID int64) ([]Estante, error) {
	if err := actor.Require(shared.PermLocationsView); err != nil {
		return nil, err
	}
	return s.repo.ListEstantes(ctx, ubicacionID)
}

// CreateNivel adds a global level code.
func (s *Service) CreateNivel(ctx context.Context, actor shared.Actor, codigo string) (Nivel, error) {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return Nivel{}, err
	}
	codigo = strings.ToUpper(strings.TrimSpace(codigo))
	if codigo == "" {
		return Nivel{}, ErrMissingCode
	}
	id, err := s.repo.InsertNivel(ctx, codigo)
	if err != nil {
		return Nivel{}, err
	}
	return Nivel{ID: id, Codigo: codigo, Activo: true}, nil
}

// CreateFila adds a global row code.
func (s *Service) CreateFila(ctx context.Context, actor shared.Actor, codigo string) (Fila, error) {
	if err := actor.Require(shared.PermLocationsEdit); err != nil {
		return Fila{}, err
	}
	codigo = strings.ToUpper(strings.TrimSpace(codigo))
	if codigo == "" {
		return Fila{}, ErrMissingCode
	}
	id, err := s.repo.InsertFila(ctx, codigo)
	if err != nil {
		return Fila{}, err
	}
	return Fila{ID: id, Codigo: codigo, Activo: true}, nil
}

// ListNiveles lists the level catalogue.
func (s *Service) ListNiveles(ctx context.Context, actor shared.Actor) ([]Nivel, error) {
	if err := actor.Require(shared.PermLocationsView); err != nil {
		return nil, err
	}
	return s.repo.ListNiveles(ctx)
}

// ListFilas lists the row catalogue.
func (s *Service) ListFilas(ctx context.Context, actor shared.Actor) ([]Fila, error) {
	if err := actor.Require(shared.PermLocationsView); err != nil {
		return nil, err
	}
	return s.repo.ListFilas(ctx)
}

// AssignUserBodega grants a user visibility over a bodega. ADMIN only.
func (s *Service) AssignUserBodega(ctx context.Context, actor shared.Actor, userID, bodegaID int64) error {
	if !actor.IsAdmin() {
		return shared.ErrPermissionDenied
	}
	if _, err := s.repo.GetBodega(ctx, bodegaID); err != nil {
		return err
	}
	return s.repo.AssignUserBodega(ctx, userID, bodegaID)
}

// RemoveUserBodega revokes a user's bodega assignment. ADMIN only.
func (s *Service) RemoveUserBodega(ctx context.Context, actor shared.Actor, userID, bodegaID int64) error {
	if !actor.IsAdmin() {
		return shared.ErrPermissionDenied
	}
	return s.repo.RemoveUserBodega(ctx, userID, bodegaID)
}

// VisibleScope resolves the bodega scoping rule consumed by part listings:
// administrators and users without assignment rows see everything; everyone
// else sees their assigned bodegas plus parts with no physical location.
func (s *Service) VisibleScope(ctx context.Context, actor shared.Actor) (Scope, error) {
	if actor.IsAdmin() {
		return Scope{All: true}, nil
	}
	ids, err := s.repo.UserBodegas(ctx, actor.UserID)
	if err != nil {
		return Scope{}, err
	}
	if len(ids) == 0 {
		return Scope{All: true}, nil
	}
	return Scope{BodegaIDs: ids}, nil
}
