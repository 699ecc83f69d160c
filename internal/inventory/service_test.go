package inventory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// memoryInvRepo serializes transactions with a mutex and restores state on
// rollback, mirroring the row-lock behavior of the real store.
type memoryInvRepo struct {
	mu        sync.Mutex
	parts     map[int64]*LockedPart
	movements []Movimiento
	nextID    int64
}

func newMemoryInvRepo(parts ...LockedPart) *memoryInvRepo {
	r := &memoryInvRepo{parts: make(map[int64]*LockedPart)}
	for _, p := range parts {
		cp := p
		r.parts[p.ID] = &cp
	}
	return r
}

func (r *memoryInvRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	backup := make(map[int64]LockedPart, len(r.parts))
	for id, p := range r.parts {
		backup[id] = *p
	}
	movLen := len(r.movements)
	prevID := r.nextID

	if err := fn(ctx, &memoryInvTx{repo: r}); err != nil {
		for id := range r.parts {
			cp := backup[id]
			r.parts[id] = &cp
		}
		r.movements = r.movements[:movLen]
		r.nextID = prevID
		return err
	}
	return nil
}

func (r *memoryInvRepo) List(ctx context.Context, filters ListFilters) ([]Movimiento, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Movimiento{}
	for _, m := range r.movements {
		if filters.RepuestoID != 0 && m.RepuestoID != filters.RepuestoID {
			continue
		}
		if filters.Referencia != "" && m.Referencia != filters.Referencia {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

type memoryInvTx struct {
	repo *memoryInvRepo
}

func (t *memoryInvTx) LockPart(ctx context.Context, id int64) (LockedPart, error) {
	p, ok := t.repo.parts[id]
	if !ok {
		return LockedPart{}, ErrPartNotFound
	}
	return *p, nil
}

func (t *memoryInvTx) MovementExists(ctx context.Context, ref string, repuestoID int64, tipo MovementKind) (bool, error) {
	for _, m := range t.repo.movements {
		if m.Referencia == ref && m.RepuestoID == repuestoID && m.Tipo == tipo {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryInvTx) UpdateStock(ctx context.Context, repuestoID, newStock int64) error {
	t.repo.parts[repuestoID].StockActual = newStock
	return nil
}

func (t *memoryInvTx) InsertMovement(ctx context.Context, m Movimiento) (int64, error) {
	if m.Referencia != "" {
		for _, prev := range t.repo.movements {
			if prev.Referencia == m.Referencia && prev.RepuestoID == m.RepuestoID && prev.Tipo == m.Tipo {
				return 0, ErrDuplicateMovement
			}
		}
	}
	t.repo.nextID++
	m.ID = t.repo.nextID
	t.repo.movements = append(t.repo.movements, m)
	return m.ID, nil
}

type memoryAlerts struct {
	mu         sync.Mutex
	reconciled []int64
}

func (a *memoryAlerts) ReconcilePart(ctx context.Context, repuestoID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reconciled = append(a.reconciled, repuestoID)
	return nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry audit.Entry) {}

var (
	tecnico = shared.Actor{UserID: 4, Role: shared.RoleTecnico}
	lector  = shared.Actor{UserID: 5, Role: shared.RoleEmpleado}
)

func newInvService(parts ...LockedPart) (*Service, *memoryInvRepo, *memoryAlerts) {
	repo := newMemoryInvRepo(parts...)
	alerts := &memoryAlerts{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, alerts, noopAudit{}, logger), repo, alerts
}

func basePart() LockedPart {
	return LockedPart{ID: 1, Codigo: "FIL-001", StockActual: 10, StockMinimo: 3, StockMaximo: 15, Activo: true}
}

func TestApplyEntryOverMaxWarns(t *testing.T) {
	svc, repo, _ := newInvService(basePart())
	res, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindEntry, Cantidad: 10, Motivo: "recepción",
	})
	require.NoError(t, err)
	require.True(t, res.Warning)
	require.EqualValues(t, 10, res.Movimiento.StockAnterior)
	require.EqualValues(t, 20, res.Movimiento.StockNuevo)
	require.EqualValues(t, 20, repo.parts[1].StockActual)
}

func TestApplyExitInsufficientStock(t *testing.T) {
	svc, repo, alerts := newInvService(basePart())
	_, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindExit, Cantidad: 11, Motivo: "orden de trabajo",
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	meta := shared.MetaOf(err)
	require.EqualValues(t, 10, meta["disponible"])
	require.EqualValues(t, 11, meta["solicitado"])

	// nothing changed, nothing reconciled
	require.EqualValues(t, 10, repo.parts[1].StockActual)
	require.Empty(t, repo.movements)
	require.Empty(t, alerts.reconciled)
}

func TestApplyAdjustNegativeTargetFails(t *testing.T) {
	svc, _, _ := newInvService(basePart())
	_, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindAdjust, Cantidad: -11, Motivo: "conteo físico",
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	res, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindAdjust, Cantidad: -10, Motivo: "conteo físico",
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Movimiento.StockNuevo)
}

func TestApplyDuplicateReference(t *testing.T) {
	svc, repo, _ := newInvService(basePart())
	in := MovementInput{RepuestoID: 1, Tipo: KindEntry, Cantidad: 2, Motivo: "recepción", Referencia: "OC-20260829-0001"}

	_, err := svc.Apply(context.Background(), tecnico, in)
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), tecnico, in)
	require.ErrorIs(t, err, ErrDuplicateMovement)

	require.Len(t, repo.movements, 1)
	require.EqualValues(t, 12, repo.parts[1].StockActual)

	// same reference with a different kind is a distinct movement
	_, err = svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindExit, Cantidad: 1, Motivo: "devolución", Referencia: "OC-20260829-0001",
	})
	require.NoError(t, err)
}

func TestApplyValidation(t *testing.T) {
	svc, _, _ := newInvService(basePart())
	ctx := context.Background()

	_, err := svc.Apply(ctx, tecnico, MovementInput{RepuestoID: 1, Tipo: "TRASLADO", Cantidad: 1, Motivo: "x"})
	require.ErrorIs(t, err, ErrInvalidKind)

	_, err = svc.Apply(ctx, tecnico, MovementInput{RepuestoID: 1, Tipo: KindExit, Cantidad: 0, Motivo: "x"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Apply(ctx, tecnico, MovementInput{RepuestoID: 1, Tipo: KindAdjust, Cantidad: 0, Motivo: "x"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Apply(ctx, tecnico, MovementInput{RepuestoID: 1, Tipo: KindEntry, Cantidad: 1, Motivo: "  "})
	require.ErrorIs(t, err, ErrMissingReason)

	_, err = svc.Apply(ctx, lector, MovementInput{RepuestoID: 1, Tipo: KindEntry, Cantidad: 1, Motivo: "x"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestApplyRejectsDeletedPart(t *testing.T) {
	p := basePart()
	p.Eliminado = true
	svc, _, _ := newInvService(p)
	_, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindEntry, Cantidad: 1, Motivo: "recepción",
	})
	require.ErrorIs(t, err, ErrPartDeleted)
}

func TestApplyBatchAtomic(t *testing.T) {
	svc, repo, alerts := newInvService(
		basePart(),
		LockedPart{ID: 2, Codigo: "BUJ-004", StockActual: 1, StockMinimo: 1, StockMaximo: 10, Activo: true},
	)
	ctx := context.Background()

	// second line fails, first must not land
	_, err := svc.ApplyBatch(ctx, tecnico, []MovementInput{
		{RepuestoID: 1, Tipo: KindExit, Cantidad: 5, Motivo: "orden de trabajo"},
		{RepuestoID: 2, Tipo: KindExit, Cantidad: 3, Motivo: "orden de trabajo"},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 10, repo.parts[1].StockActual)
	require.EqualValues(t, 1, repo.parts[2].StockActual)
	require.Empty(t, repo.movements)
	require.Empty(t, alerts.reconciled)

	results, err := svc.ApplyBatch(ctx, tecnico, []MovementInput{
		{RepuestoID: 2, Tipo: KindExit, Cantidad: 1, Motivo: "orden de trabajo"},
		{RepuestoID: 1, Tipo: KindExit, Cantidad: 5, Motivo: "orden de trabajo"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// results keep the caller's order even though locking reorders by part id
	require.EqualValues(t, 2, results[0].Movimiento.RepuestoID)
	require.EqualValues(t, 1, results[1].Movimiento.RepuestoID)
	require.EqualValues(t, 5, repo.parts[1].StockActual)
	require.EqualValues(t, 0, repo.parts[2].StockActual)
	require.ElementsMatch(t, []int64{1, 2}, alerts.reconciled)
}

func TestApplyConcurrentNoLostUpdates(t *testing.T) {
	p := basePart()
	p.StockActual = 50
	svc, repo, _ := newInvService(p)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(context.Background(), tecnico, MovementInput{
				RepuestoID: 1, Tipo: KindExit, Cantidad: 1, Motivo: "orden de trabajo",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 0, repo.parts[1].StockActual)
	require.Len(t, repo.movements, 50)

	// transitions chain without gaps or overlaps
	seen := map[int64]bool{}
	for _, m := range repo.movements {
		require.Equal(t, m.StockAnterior-1, m.StockNuevo)
		require.False(t, seen[m.StockNuevo])
		seen[m.StockNuevo] = true
	}
}

func TestReconcileRunsAfterCommit(t *testing.T) {
	svc, _, alerts := newInvService(basePart())
	_, err := svc.Apply(context.Background(), tecnico, MovementInput{
		RepuestoID: 1, Tipo: KindExit, Cantidad: 8, Motivo: "orden de trabajo",
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, alerts.reconciled)
}
