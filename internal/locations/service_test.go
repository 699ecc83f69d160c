package locations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallerpro/tallerpro/internal/shared"
)

type memoryLocationsRepo struct {
	bodegas     map[int64]*Bodega
	ubicaciones map[int64]*Ubicacion
	estantes    map[int64]*Estante
	niveles     map[int64]*Nivel
	filas       map[int64]*Fila
	assignments map[int64][]int64
	nextID      int64
}

func newMemoryLocationsRepo() *memoryLocationsRepo {
	return &memoryLocationsRepo{
		bodegas:     make(map[int64]*Bodega),
		ubicaciones: make(map[int64]*Ubicacion),
		estantes:    make(map[int64]*Estante),
		niveles:     make(map[int64]*Nivel),
		filas:       make(map[int64]*Fila),
		assignments: make(map[int64][]int64),
	}
}

func (r *memoryLocationsRepo) InsertBodega(ctx context.Context, b Bodega) (int64, error) {
	for _, existing := range r.bodegas {
		if existing.Nombre == b.Nombre {
			return 0, ErrDuplicateName
		}
	}
	r.nextID++
	b.ID = r.nextID
	b.Activo = true
	r.bodegas[b.ID] = &b
	return b.ID, nil
}

func (r *memoryLocationsRepo) UpdateBodega(ctx context.Context, b Bodega) error {
	existing, ok := r.bodegas[b.ID]
	if !ok {
		return ErrBodegaNotFound
	}
	*existing = b
	return nil
}

func (r *memoryLocationsRepo) GetBodega(ctx context.Context, id int64) (Bodega, error) {
	b, ok := r.bodegas[id]
	if !ok {
		return Bodega{}, ErrBodegaNotFound
	}
	return *b, nil
}

func (r *memoryLocationsRepo) ListBodegas(ctx context.Context, onlyActive bool) ([]Bodega, error) {
	out := []Bodega{}
	for _, b := range r.bodegas {
		if onlyActive && !b.Activo {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *memoryLocationsRepo) InsertUbicacion(ctx context.Context, u Ubicacion) (int64, error) {
	for _, existing := range r.ubicaciones {
		if existing.BodegaID == u.BodegaID && existing.Codigo == u.Codigo {
			return 0, ErrDuplicateCode
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.Activo = true
	r.ubicaciones[u.ID] = &u
	return u.ID, nil
}

func (r *memoryLocationsRepo) UpdateUbicacion(ctx context.Context, u Ubicacion) error {
	existing, ok := r.ubicaciones[u.ID]
	if !ok {
		return ErrUbicacionNotFound
	}
	*existing = u
	return nil
}

func (r *memoryLocationsRepo) GetUbicacion(ctx context.Context, id int64) (Ubicacion, error) {
	u, ok := r.ubicaciones[id]
	if !ok {
		return Ubicacion{}, ErrUbicacionNotFound
	}
	return *u, nil
}

func (r *memoryLocationsRepo) ListUbicaciones(ctx context.Context, bodegaID int64) ([]Ubicacion, error) {
	out := []Ubicacion{}
	for _, u := range r.ubicaciones {
		if bodegaID == 0 || u.BodegaID == bodegaID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memoryLocationsRepo) InsertEstante(ctx context.Context, e Estante) (int64, error) {
	for _, existing := range r.estantes {
		if existing.UbicacionID == e.UbicacionID && existing.Codigo == e.Codigo {
			return 0, ErrDuplicateCode
		}
	}
	r.nextID++
	e.ID = r.nextID
	e.Activo = true
	r.estantes[e.ID] = &e
	return e.ID, nil
}

func (r *memoryLocationsRepo) UpdateEstante(ctx context.Context, e Estante) error {
	existing, ok := r.estantes[e.ID]
	if !ok {
		return ErrEstanteNotFound
	}
	*existing = e
	return nil
}

func (r *memoryLocationsRepo) ListEstantes(ctx context.Context, ubicacionID int64) ([]Estante, error) {
	out := []Estante{}
	for _, e := range r.estantes {
		if ubicacionID == 0 || e.UbicacionID == ubicacionID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryLocationsRepo) InsertNivel(ctx context.Context, codigo string) (int64, error) {
	for _, n := range r.niveles {
		if n.Codigo == codigo {
			return 0, ErrDuplicateCode
		}
	}
	r.nextID++
	r.niveles[r.nextID] = &Nivel{ID: r.nextID, Codigo: codigo, Activo: true}
	return r.nextID, nil
}

func (r *memoryLocationsRepo) InsertFila(ctx context.Context, codigo string) (int64, error) {
	for _, f := range r.filas {
		if f.Codigo == codigo {
			return 0, ErrDuplicateCode
		}
	}
	r.nextID++
	r.filas[r.nextID] = &Fila{ID: r.nextID, Codigo: codigo, Activo: true}
	return r.nextID, nil
}

func (r *memoryLocationsRepo) ListNiveles(ctx context.Context) ([]Nivel, error) {
	out := []Nivel{}
	for _, n := range r.niveles {
		out = append(out, *n)
	}
	return out, nil
}

func (r *memoryLocationsRepo) ListFilas(ctx context.Context) ([]Fila, error) {
	out := []Fila{}
	for _, f := range r.filas {
		out = append(out, *f)
	}
	return out, nil
}

func (r *memoryLocationsRepo) AssignUserBodega(ctx context.Context, userID, bodegaID int64) error {
	for _, id := range r.assignments[userID] {
		if id == bodegaID {
			return nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], bodegaID)
	return nil
}

func (r *memoryLocationsRepo) RemoveUserBodega(ctx context.Context, userID, bodegaID int64) error {
	ids := r.assignments[userID]
	for i, id := range ids {
		if id == bodegaID {
			r.assignments[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memoryLocationsRepo) UserBodegas(ctx context.Context, userID int64) ([]int64, error) {
	return r.assignments[userID], nil
}

var (
	locAdmin    = shared.Actor{UserID: 1, Role: shared.RoleAdmin}
	locCaja     = shared.Actor{UserID: 2, Role: shared.RoleCaja}
	locEmpleado = shared.Actor{UserID: 3, Role: shared.RoleEmpleado}
)

func newLocationsService() (*Service, *memoryLocationsRepo) {
	repo := newMemoryLocationsRepo()
	return NewService(repo), repo
}

func TestCreateBodegaNormalizesAndRejectsDuplicates(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b, err := svc.CreateBodega(ctx, locAdmin, "  Bodega Central ")
	require.NoError(t, err)
	require.Equal(t, "Bodega Central", b.Nombre)
	require.True(t, b.Activo)

	_, err = svc.CreateBodega(ctx, locAdmin, "Bodega Central")
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.CreateBodega(ctx, locAdmin, "   ")
	require.ErrorIs(t, err, ErrMissingName)
}

func TestLocationEditRequiresPermission(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	_, err := svc.CreateBodega(ctx, locEmpleado, "Bodega Norte")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.CreateNivel(ctx, locEmpleado, "N1")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUbicacionCodeUppercasedAndScopedUnique(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b1, err := svc.CreateBodega(ctx, locAdmin, "Bodega A")
	require.NoError(t, err)
	b2, err := svc.CreateBodega(ctx, locAdmin, "Bodega B")
	require.NoError(t, err)

	u, err := svc.CreateUbicacion(ctx, locAdmin, Ubicacion{BodegaID: b1.ID, Codigo: " z1 ", Nombre: "Pasillo 1"})
	require.NoError(t, err)
	require.Equal(t, "Z1", u.Codigo)

	_, err = svc.CreateUbicacion(ctx, locAdmin, Ubicacion{BodegaID: b1.ID, Codigo: "Z1"})
	require.ErrorIs(t, err, ErrDuplicateCode)

	// Same code in another bodega is fine.
	_, err = svc.CreateUbicacion(ctx, locAdmin, Ubicacion{BodegaID: b2.ID, Codigo: "Z1"})
	require.NoError(t, err)

	_, err = svc.CreateUbicacion(ctx, locAdmin, Ubicacion{BodegaID: 999, Codigo: "Z9"})
	require.ErrorIs(t, err, ErrBodegaNotFound)
}

func TestEstanteRequiresExistingUbicacion(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b, err := svc.CreateBodega(ctx, locAdmin, "Bodega A")
	require.NoError(t, err)
	u, err := svc.CreateUbicacion(ctx, locAdmin, Ubicacion{BodegaID: b.ID, Codigo: "Z1"})
	require.NoError(t, err)

	e, err := svc.CreateEstante(ctx, locAdmin, Estante{UbicacionID: u.ID, Codigo: "e3"})
	require.NoError(t, err)
	require.Equal(t, "E3", e.Codigo)

	_, err = svc.CreateEstante(ctx, locAdmin, Estante{UbicacionID: 999, Codigo: "E1"})
	require.ErrorIs(t, err, ErrUbicacionNotFound)
}

func TestVisibleScopeRules(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b1, err := svc.CreateBodega(ctx, locAdmin, "Bodega A")
	require.NoError(t, err)
	_, err = svc.CreateBodega(ctx, locAdmin, "Bodega B")
	require.NoError(t, err)

	// Admin sees everything.
	scope, err := svc.VisibleScope(ctx, locAdmin)
	require.NoError(t, err)
	require.True(t, scope.All)

	// A user with no assignment rows also sees everything.
	scope, err = svc.VisibleScope(ctx, locCaja)
	require.NoError(t, err)
	require.True(t, scope.All)

	// An assigned user is restricted to their bodegas.
	require.NoError(t, svc.AssignUserBodega(ctx, locAdmin, locCaja.UserID, b1.ID))
	scope, err = svc.VisibleScope(ctx, locCaja)
	require.NoError(t, err)
	require.False(t, scope.All)
	require.Equal(t, []int64{b1.ID}, scope.BodegaIDs)

	// Removing the last assignment restores full visibility.
	require.NoError(t, svc.RemoveUserBodega(ctx, locAdmin, locCaja.UserID, b1.ID))
	scope, err = svc.VisibleScope(ctx, locCaja)
	require.NoError(t, err)
	require.True(t, scope.All)
}

func TestAssignUserBodegaAdminOnly(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b, err := svc.CreateBodega(ctx, locAdmin, "Bodega A")
	require.NoError(t, err)

	err = svc.AssignUserBodega(ctx, locCaja, locEmpleado.UserID, b.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = svc.AssignUserBodega(ctx, locAdmin, locEmpleado.UserID, 999)
	require.ErrorIs(t, err, ErrBodegaNotFound)
}

func TestListBodegasFiltersByScope(t *testing.T) {
	svc, _ := newLocationsService()
	ctx := context.Background()

	b1, err := svc.CreateBodega(ctx, locAdmin, "Bodega A")
	require.NoError(t, err)
	_, err = svc.CreateBodega(ctx, locAdmin, "Bodega B")
	require.NoError(t, err)

	require.NoError(t, svc.AssignUserBodega(ctx, locAdmin, locCaja.UserID, b1.ID))

	items, err := svc.ListBodegas(ctx, locCaja, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, b1.ID, items[0].ID)

	all, err := svc.ListBodegas(ctx, locAdmin, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
