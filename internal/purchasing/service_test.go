package purchasing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/inventory"
	"github.com/tallerpro/tallerpro/internal/settings"
	"github.com/tallerpro/tallerpro/internal/shared"
)

type memoryPORepo struct {
	orders          map[int64]*OrdenCompra
	lines           map[int64]*DetalleOrdenCompra
	parts           map[int64]*inventory.LockedPart
	movements       []inventory.Movimiento
	nextID          int64
	forcedDupes     int
	failLineInserts bool
	insertedNums    map[string]bool
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{
		orders:       make(map[int64]*OrdenCompra),
		lines:        make(map[int64]*DetalleOrdenCompra),
		parts:        make(map[int64]*inventory.LockedPart),
		insertedNums: make(map[string]bool),
	}
}

type snapshot struct {
	orders map[int64]OrdenCompra
	lines  map[int64]DetalleOrdenCompra
	parts  map[int64]inventory.LockedPart
	nums   map[string]bool
	movLen int
	nextID int64
}

func (r *memoryPORepo) snap() snapshot {
	s := snapshot{
		orders: make(map[int64]OrdenCompra, len(r.orders)),
		lines:  make(map[int64]DetalleOrdenCompra, len(r.lines)),
		parts:  make(map[int64]inventory.LockedPart, len(r.parts)),
		nums:   make(map[string]bool, len(r.insertedNums)),
		movLen: len(r.movements),
		nextID: r.nextID,
	}
	for id, o := range r.orders {
		s.orders[id] = *o
	}
	for id, l := range r.lines {
		s.lines[id] = *l
	}
	for id, p := range r.parts {
		s.parts[id] = *p
	}
	for n := range r.insertedNums {
		s.nums[n] = true
	}
	return s
}

func (r *memoryPORepo) restore(s snapshot) {
	r.orders = make(map[int64]*OrdenCompra, len(s.orders))
	for id, o := range s.orders {
		cp := o
		r.orders[id] = &cp
	}
	r.lines = make(map[int64]*DetalleOrdenCompra, len(s.lines))
	for id, l := range s.lines {
		cp := l
		r.lines[id] = &cp
	}
	r.parts = make(map[int64]*inventory.LockedPart, len(s.parts))
	for id, p := range s.parts {
		cp := p
		r.parts[id] = &cp
	}
	r.insertedNums = s.nums
	r.movements = r.movements[:s.movLen]
	r.nextID = s.nextID
}

func (r *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s := r.snap()
	if err := fn(ctx, &memoryPOTx{repo: r}); err != nil {
		r.restore(s)
		return err
	}
	return nil
}

func (r *memoryPORepo) Get(ctx context.Context, id int64) (OrdenCompra, error) {
	o, ok := r.orders[id]
	if !ok {
		return OrdenCompra{}, ErrNotFound
	}
	return *o, nil
}

func (r *memoryPORepo) GetWithLines(ctx context.Context, id int64) (OrderWithLines, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return OrderWithLines{}, err
	}
	out := OrderWithLines{Orden: o}
	for _, l := range r.lines {
		if l.OrdenID == id {
			out.Lineas = append(out.Lineas, *l)
		}
	}
	return out, nil
}

func (r *memoryPORepo) List(ctx context.Context, filters ListFilters) ([]OrdenCompra, int, error) {
	out := []OrdenCompra{}
	for _, o := range r.orders {
		if filters.Estado != "" && o.Estado != filters.Estado {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

type memoryPOTx struct {
	repo *memoryPORepo
}

func (t *memoryPOTx) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	pattern := fmt.Sprintf("%s%s-", prefix, day.Format("20060102"))
	max := 0
	for numero := range t.repo.insertedNums {
		if strings.HasPrefix(numero, pattern) {
			var n int
			fmt.Sscanf(numero[len(pattern):], "%d", &n)
			if n > max {
				max = n
			}
		}
	}
	return max + 1, nil
}

func (t *memoryPOTx) InsertOrder(ctx context.Context, o OrdenCompra) (int64, bool, error) {
	if t.repo.forcedDupes > 0 {
		t.repo.forcedDupes--
		return 0, true, fmt.Errorf("numero duplicado")
	}
	if t.repo.insertedNums[o.Numero] {
		return 0, true, fmt.Errorf("numero duplicado")
	}
	t.repo.nextID++
	o.ID = t.repo.nextID
	t.repo.orders[o.ID] = &o
	t.repo.insertedNums[o.Numero] = true
	return o.ID, false, nil
}

func (t *memoryPOTx) InsertLine(ctx context.Context, l DetalleOrdenCompra) (int64, error) {
	if t.repo.failLineInserts {
		return 0, fmt.Errorf("insert detalle falló")
	}
	t.repo.nextID++
	l.ID = t.repo.nextID
	t.repo.lines[l.ID] = &l
	return l.ID, nil
}

func (t *memoryPOTx) GetForUpdate(ctx context.Context, id int64) (OrdenCompra, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryPOTx) Lines(ctx context.Context, ordenID int64) ([]DetalleOrdenCompra, error) {
	out := []DetalleOrdenCompra{}
	for _, l := range t.repo.lines {
		if l.OrdenID == ordenID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (t *memoryPOTx) SetEstado(ctx context.Context, id int64, estado Estado) error {
	o := t.repo.orders[id]
	o.Estado = estado
	now := time.Now()
	switch estado {
	case EstadoEnviada:
		o.EnviadaAt = &now
	case EstadoRecibida:
		o.RecibidaAt = &now
	}
	return nil
}

func (t *memoryPOTx) SetCancelled(ctx context.Context, id int64, motivo, evidencia string, actorID int64) error {
	o := t.repo.orders[id]
	o.Estado = EstadoCancelada
	o.MotivoCancel = motivo
	o.EvidenciaCancel = evidencia
	now := time.Now()
	o.CanceladaAt = &now
	o.CanceladaPor = actorID
	return nil
}

func (t *memoryPOTx) SetReciboURL(ctx context.Context, id int64, url string) error {
	t.repo.orders[id].ReciboURL = url
	return nil
}

func (t *memoryPOTx) AddReceived(ctx context.Context, detalleID, cantidad int64, precioReal *decimal.Decimal) error {
	l, ok := t.repo.lines[detalleID]
	if !ok {
		return ErrLineNotFound
	}
	l.CantidadRecibida += cantidad
	if precioReal != nil {
		p := *precioReal
		l.PrecioReal = &p
	}
	return nil
}

func (t *memoryPOTx) LinkLinePart(ctx context.Context, detalleID, repuestoID int64) error {
	t.repo.lines[detalleID].RepuestoID = &repuestoID
	return nil
}

func (t *memoryPOTx) BumpRecepciones(ctx context.Context, ordenID int64) (int, error) {
	o := t.repo.orders[ordenID]
	o.Recepciones++
	return o.Recepciones, nil
}

func (t *memoryPOTx) EnsurePlaceholderPart(ctx context.Context, codigo string, precio decimal.Decimal) (int64, error) {
	for _, p := range t.repo.parts {
		if p.Codigo == codigo && !p.Eliminado {
			p.Activo = true
			return p.ID, nil
		}
	}
	t.repo.nextID++
	t.repo.parts[t.repo.nextID] = &inventory.LockedPart{
		ID: t.repo.nextID, Codigo: codigo, StockMaximo: 1, Activo: true,
	}
	return t.repo.nextID, nil
}

func (t *memoryPOTx) Inventory() inventory.TxRepository {
	return &memoryInvTx{repo: t.repo}
}

type memoryInvTx struct {
	repo *memoryPORepo
}

func (t *memoryInvTx) LockPart(ctx context.Context, id int64) (inventory.LockedPart, error) {
	p, ok := t.repo.parts[id]
	if !ok {
		return inventory.LockedPart{}, inventory.ErrPartNotFound
	}
	return *p, nil
}

func (t *memoryInvTx) MovementExists(ctx context.Context, ref string, repuestoID int64, tipo inventory.MovementKind) (bool, error) {
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

func (t *memoryInvTx) InsertMovement(ctx context.Context, m inventory.Movimiento) (int64, error) {
	t.repo.nextID++
	m.ID = t.repo.nextID
	t.repo.movements = append(t.repo.movements, m)
	return m.ID, nil
}

type fixedSettings struct{}

func (fixedSettings) Get(ctx context.Context) (settings.Values, error) {
	return settings.Defaults(), nil
}

type recordingJobs struct {
	sent []int64
}

func (j *recordingJobs) EnqueuePOSent(ctx context.Context, ordenID int64) error {
	j.sent = append(j.sent, ordenID)
	return nil
}

type recordingAlerts struct {
	reconciled []int64
}

func (a *recordingAlerts) ReconcilePart(ctx context.Context, repuestoID int64) error {
	a.reconciled = append(a.reconciled, repuestoID)
	return nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry audit.Entry) {}

var comprador = shared.Actor{UserID: 2, Role: shared.RoleCaja}

func newPOService() (*Service, *memoryPORepo, *recordingJobs, *recordingAlerts) {
	repo := newMemoryPORepo()
	jobs := &recordingJobs{}
	alerts := &recordingAlerts{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, fixedSettings{}, alerts, jobs, noopAudit{}, logger), repo, jobs, alerts
}

func ptr(v int64) *int64 { return &v }

func seedPart(repo *memoryPORepo, id int64, codigo string, stock int64) {
	repo.parts[id] = &inventory.LockedPart{
		ID: id, Codigo: codigo, StockActual: stock, StockMinimo: 1, StockMaximo: 100, Activo: true,
	}
	if id > repo.nextID {
		repo.nextID = id
	}
}

func draftOrder(t *testing.T, svc *Service, lines ...LineInput) OrderWithLines {
	t.Helper()
	if len(lines) == 0 {
		lines = []LineInput{{RepuestoID: ptr(1), Cantidad: 10, PrecioUnitario: decimal.NewFromInt(1000)}}
	}
	order, err := svc.Create(context.Background(), comprador, CreateInput{ProveedorID: 1, Lines: lines})
	require.NoError(t, err)
	return order
}

func sendOrder(t *testing.T, svc *Service, id int64) {
	t.Helper()
	_, err := svc.Authorize(context.Background(), comprador, id)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), comprador, id)
	require.NoError(t, err)
}

func TestCreateComputesTotalAndNumber(t *testing.T) {
	svc, _, _, _ := newPOService()
	order := draftOrder(t, svc, LineInput{RepuestoID: ptr(1), Cantidad: 10, PrecioUnitario: decimal.NewFromInt(1000)})

	require.Equal(t, EstadoBorrador, order.Orden.Estado)
	// estimated total is quantity times estimated price, tax free
	require.True(t, order.Orden.Total.Equal(decimal.NewFromInt(10000)))

	today := time.Now().Format("20060102")
	require.Equal(t, fmt.Sprintf("OC-%s-0001", today), order.Orden.Numero)

	second := draftOrder(t, svc)
	require.Equal(t, fmt.Sprintf("OC-%s-0002", today), second.Orden.Numero)
}

func TestCreateRollsBackOnLineFailure(t *testing.T) {
	svc, repo, _, _ := newPOService()
	repo.failLineInserts = true

	_, err := svc.Create(context.Background(), comprador, CreateInput{
		ProveedorID: 1,
		Lines: []LineInput{
			{RepuestoID: ptr(1), Cantidad: 2, PrecioUnitario: decimal.NewFromInt(100)},
			{RepuestoID: ptr(2), Cantidad: 3, PrecioUnitario: decimal.NewFromInt(100)},
		},
	})
	require.Error(t, err)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.lines)
	require.Empty(t, repo.insertedNums)

	// the failed attempt did not burn the counter
	repo.failLineInserts = false
	order := draftOrder(t, svc)
	today := time.Now().Format("20060102")
	require.Equal(t, fmt.Sprintf("OC-%s-0001", today), order.Orden.Numero)
}

func TestCreateRetriesNumberCollision(t *testing.T) {
	svc, repo, _, _ := newPOService()
	repo.forcedDupes = 2
	order := draftOrder(t, svc)
	require.NotZero(t, order.Orden.ID)

	repo.forcedDupes = numberAllocRetries
	_, err := svc.Create(context.Background(), comprador, CreateInput{
		ProveedorID: 1,
		Lines:       []LineInput{{RepuestoID: ptr(1), Cantidad: 1, PrecioUnitario: decimal.NewFromInt(100)}},
	})
	require.ErrorIs(t, err, ErrNumberExhausted)
}

func TestCreateValidatesLines(t *testing.T) {
	svc, _, _, _ := newPOService()
	ctx := context.Background()

	_, err := svc.Create(ctx, comprador, CreateInput{ProveedorID: 1})
	require.ErrorIs(t, err, ErrNoLines)

	// a line must name a part or a new code, never both
	_, err = svc.Create(ctx, comprador, CreateInput{ProveedorID: 1, Lines: []LineInput{
		{RepuestoID: ptr(1), CodigoNuevo: "NVO-1", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(100)},
	}})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.Create(ctx, comprador, CreateInput{ProveedorID: 1, Lines: []LineInput{
		{RepuestoID: ptr(1), Cantidad: 0, PrecioUnitario: decimal.NewFromInt(100)},
	}})
	require.ErrorIs(t, err, ErrInvalidLine)
}

func TestStateMachineGuards(t *testing.T) {
	svc, _, _, _ := newPOService()
	ctx := context.Background()
	order := draftOrder(t, svc)

	// skipping authorization is invalid
	_, err := svc.Send(ctx, comprador, order.Orden.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Authorize(ctx, comprador, order.Orden.ID)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, comprador, order.Orden.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Send(ctx, comprador, order.Orden.ID)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, comprador, order.Orden.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSendEnqueuesSupplierEmail(t *testing.T) {
	svc, repo, jobs, _ := newPOService()
	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)
	require.Equal(t, []int64{order.Orden.ID}, jobs.sent)
	require.NotNil(t, repo.orders[order.Orden.ID].EnviadaAt)
}

func TestReceivePartialThenComplete(t *testing.T) {
	svc, repo, _, alerts := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)
	lineID := order.Lineas[0].ID

	got, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: lineID, Cantidad: 4}}})
	require.NoError(t, err)
	require.Equal(t, EstadoRecibidaParcial, got.Orden.Estado)
	require.EqualValues(t, 4, repo.parts[1].StockActual)
	require.EqualValues(t, 4, got.Lineas[0].CantidadRecibida)
	require.Equal(t, order.Orden.Numero, repo.movements[0].Referencia)
	require.Equal(t, []int64{1}, alerts.reconciled)

	got, err = svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: lineID, Cantidad: 6}}})
	require.NoError(t, err)
	require.Equal(t, EstadoRecibida, got.Orden.Estado)
	require.NotNil(t, got.Orden.RecibidaAt)
	require.EqualValues(t, 10, repo.parts[1].StockActual)
	// second receipt carries its own reference so the dedupe index stays clean
	require.Equal(t, order.Orden.Numero+"-R2", repo.movements[1].Referencia)

	// terminal: no further receipts, rejected as a business rule
	_, err = svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: lineID, Cantidad: 1}}})
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	require.Equal(t, shared.KindBusiness, shared.KindOf(err))
}

func TestReceiveReplaySameReferenceRejected(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)
	lineID := order.Lineas[0].ID

	input := ReceiveInput{
		Lines:      []ReceiveLine{{DetalleID: lineID, Cantidad: 4}},
		Referencia: "GUIA-778",
	}
	_, err := svc.Receive(ctx, comprador, order.Orden.ID, input)
	require.NoError(t, err)
	require.Equal(t, "GUIA-778", repo.movements[0].Referencia)

	// retry after a lost response must not credit stock twice
	_, err = svc.Receive(ctx, comprador, order.Orden.ID, input)
	require.ErrorIs(t, err, inventory.ErrDuplicateMovement)
	require.EqualValues(t, 4, repo.parts[1].StockActual)
	require.Len(t, repo.movements, 1)
	require.EqualValues(t, 4, repo.lines[lineID].CantidadRecibida)
}

func TestReceiveAggregatesLinesOnSamePart(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc,
		LineInput{RepuestoID: ptr(1), Cantidad: 5, PrecioUnitario: decimal.NewFromInt(100)},
		LineInput{RepuestoID: ptr(1), Cantidad: 3, PrecioUnitario: decimal.NewFromInt(120)},
	)
	sendOrder(t, svc, order.Orden.ID)

	got, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{
		{DetalleID: order.Lineas[0].ID, Cantidad: 5},
		{DetalleID: order.Lineas[1].ID, Cantidad: 3},
	}})
	require.NoError(t, err)
	require.Equal(t, EstadoRecibida, got.Orden.Estado)
	require.EqualValues(t, 8, repo.parts[1].StockActual)
	// both lines land in one stock entry under the receipt reference
	require.Len(t, repo.movements, 1)
	require.EqualValues(t, 8, repo.movements[0].Cantidad)
}

func TestReceiveExceedsOrdered(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)

	_, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: order.Lineas[0].ID, Cantidad: 11}}})
	require.ErrorIs(t, err, ErrReceiveExceeds)
	meta := shared.MetaOf(err)
	require.EqualValues(t, 10, meta["ordenado"])
	require.EqualValues(t, 11, meta["solicitado"])

	// nothing landed
	require.EqualValues(t, 0, repo.parts[1].StockActual)
	require.Empty(t, repo.movements)
	require.Equal(t, EstadoEnviada, repo.orders[order.Orden.ID].Estado)
}

func TestReceiveAtomicAcrossLines(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)
	seedPart(repo, 2, "BUJ-004", 0)

	order := draftOrder(t, svc,
		LineInput{RepuestoID: ptr(1), Cantidad: 5, PrecioUnitario: decimal.NewFromInt(100)},
		LineInput{RepuestoID: ptr(2), Cantidad: 5, PrecioUnitario: decimal.NewFromInt(100)},
	)
	sendOrder(t, svc, order.Orden.ID)

	_, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{
		{DetalleID: order.Lineas[0].ID, Cantidad: 5},
		{DetalleID: order.Lineas[1].ID, Cantidad: 9},
	}})
	require.ErrorIs(t, err, ErrReceiveExceeds)
	require.EqualValues(t, 0, repo.parts[1].StockActual)
	require.EqualValues(t, 0, repo.parts[2].StockActual)
	require.Empty(t, repo.movements)
}

func TestReceiveCreatesPlaceholderPart(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()

	order := draftOrder(t, svc, LineInput{
		CodigoNuevo: "nvo-123", Descripcion: "Correa nueva", Cantidad: 3, PrecioUnitario: decimal.NewFromInt(2500),
	})
	sendOrder(t, svc, order.Orden.ID)

	got, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: order.Lineas[0].ID, Cantidad: 3}}})
	require.NoError(t, err)
	require.Equal(t, EstadoRecibida, got.Orden.Estado)

	require.NotNil(t, got.Lineas[0].RepuestoID)
	part := repo.parts[*got.Lineas[0].RepuestoID]
	require.Equal(t, "NVO-123", part.Codigo)
	require.EqualValues(t, 3, part.StockActual)
}

func TestReceiveCompletaRejectsShortReceipt(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)

	// asserting completeness cannot short-close an under-received order
	_, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{
		Lines:    []ReceiveLine{{DetalleID: order.Lineas[0].ID, Cantidad: 4}},
		Completa: true,
	})
	require.ErrorIs(t, err, ErrIncompleteReceipt)
	require.Equal(t, EstadoEnviada, repo.orders[order.Orden.ID].Estado)
	require.EqualValues(t, 0, repo.parts[1].StockActual)
	require.Empty(t, repo.movements)
	require.EqualValues(t, 0, repo.lines[order.Lineas[0].ID].CantidadRecibida)

	// the same flag passes when the receipt really completes the order
	got, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{
		Lines:    []ReceiveLine{{DetalleID: order.Lineas[0].ID, Cantidad: 10}},
		Completa: true,
	})
	require.NoError(t, err)
	require.Equal(t, EstadoRecibida, got.Orden.Estado)
}

func TestReceiveRecordsRealPriceAndReceipt(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)
	lineID := order.Lineas[0].ID

	real := decimal.NewFromInt(950)
	got, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{
		Lines:     []ReceiveLine{{DetalleID: lineID, Cantidad: 10, PrecioReal: &real}},
		ReciboURL: "https://archivo.taller.local/recibos/778.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, "https://archivo.taller.local/recibos/778.pdf", got.Orden.ReciboURL)
	require.NotNil(t, repo.lines[lineID].PrecioReal)
	require.True(t, repo.lines[lineID].PrecioReal.Equal(real))
	require.True(t, repo.lines[lineID].EffectivePrice().Equal(real))
}

func TestCancelRevertsReceivedStock(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc)
	sendOrder(t, svc, order.Orden.ID)
	_, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{{DetalleID: order.Lineas[0].ID, Cantidad: 4}}})
	require.NoError(t, err)
	require.EqualValues(t, 4, repo.parts[1].StockActual)

	cancelled, err := svc.Cancel(ctx, comprador, order.Orden.ID, "proveedor incumplió el plazo", "correo adjunto")
	require.NoError(t, err)
	require.Equal(t, EstadoCancelada, cancelled.Estado)
	require.NotNil(t, cancelled.CanceladaAt)
	require.Equal(t, comprador.UserID, cancelled.CanceladaPor)
	require.EqualValues(t, 0, repo.parts[1].StockActual)

	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, inventory.KindExit, last.Tipo)
	require.Equal(t, order.Orden.Numero+"-REV", last.Referencia)

	// terminal afterwards
	_, err = svc.Cancel(ctx, comprador, order.Orden.ID, "otro motivo", "")
	require.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestCancelAggregatesReversalPerPart(t *testing.T) {
	svc, repo, _, _ := newPOService()
	ctx := context.Background()
	seedPart(repo, 1, "FIL-001", 0)

	order := draftOrder(t, svc,
		LineInput{RepuestoID: ptr(1), Cantidad: 5, PrecioUnitario: decimal.NewFromInt(100)},
		LineInput{RepuestoID: ptr(1), Cantidad: 3, PrecioUnitario: decimal.NewFromInt(120)},
	)
	sendOrder(t, svc, order.Orden.ID)
	_, err := svc.Receive(ctx, comprador, order.Orden.ID, ReceiveInput{Lines: []ReceiveLine{
		{DetalleID: order.Lineas[0].ID, Cantidad: 5},
		{DetalleID: order.Lineas[1].ID, Cantidad: 2},
	}})
	require.NoError(t, err)
	require.EqualValues(t, 7, repo.parts[1].StockActual)

	_, err = svc.Cancel(ctx, comprador, order.Orden.ID, "pedido duplicado", "")
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.parts[1].StockActual)

	// one reversal per part even with two lines received
	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, inventory.KindExit, last.Tipo)
	require.EqualValues(t, 7, last.Cantidad)
	require.Equal(t, order.Orden.Numero+"-REV", last.Referencia)
	require.Len(t, repo.movements, 2)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _, _, _ := newPOService()
	order := draftOrder(t, svc)
	_, err := svc.Cancel(context.Background(), comprador, order.Orden.ID, "  ", "")
	require.ErrorIs(t, err, ErrMissingCancelInfo)
}

func TestCancelFromDraftNeedsNoMovements(t *testing.T) {
	svc, repo, _, _ := newPOService()
	order := draftOrder(t, svc)
	cancelled, err := svc.Cancel(context.Background(), comprador, order.Orden.ID, "ya no se requiere", "")
	require.NoError(t, err)
	require.Equal(t, EstadoCancelada, cancelled.Estado)
	require.Empty(t, repo.movements)
}
