package payables

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/cashbox"
	"github.com/tallerpro/tallerpro/internal/purchasing"
	"github.com/tallerpro/tallerpro/internal/shared"
)

type fakePO struct {
	numero string
	estado purchasing.Estado
	total  decimal.Decimal
}

type memoryPayRepo struct {
	pos            map[int64]*fakePO
	poPayments     map[int64][]Pago
	manual         map[int64]*CuentaPagarManual
	manualPayments map[int64][]Pago
	openShifts     map[int64]int64 // usuario -> turno
	cashEntries    []cashbox.CajaMovimiento
	nextID         int64
}

func newMemoryPayRepo() *memoryPayRepo {
	return &memoryPayRepo{
		pos:            make(map[int64]*fakePO),
		poPayments:     make(map[int64][]Pago),
		manual:         make(map[int64]*CuentaPagarManual),
		manualPayments: make(map[int64][]Pago),
		openShifts:     make(map[int64]int64),
	}
}

func (r *memoryPayRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	poLens := map[int64]int{}
	for id, p := range r.poPayments {
		poLens[id] = len(p)
	}
	manualLens := map[int64]int{}
	for id, p := range r.manualPayments {
		manualLens[id] = len(p)
	}
	cashLen := len(r.cashEntries)

	if err := fn(ctx, &memoryPayTx{repo: r}); err != nil {
		for id, n := range poLens {
			r.poPayments[id] = r.poPayments[id][:n]
		}
		for id := range r.poPayments {
			if _, ok := poLens[id]; !ok {
				delete(r.poPayments, id)
			}
		}
		for id, n := range manualLens {
			r.manualPayments[id] = r.manualPayments[id][:n]
		}
		for id := range r.manualPayments {
			if _, ok := manualLens[id]; !ok {
				delete(r.manualPayments, id)
			}
		}
		r.cashEntries = r.cashEntries[:cashLen]
		return err
	}
	return nil
}

func (r *memoryPayRepo) InsertManual(ctx context.Context, c CuentaPagarManual) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.manual[c.ID] = &c
	return c.ID, nil
}

func (r *memoryPayRepo) GetManual(ctx context.Context, id int64) (ManualWithBalance, error) {
	c, ok := r.manual[id]
	if !ok {
		return ManualWithBalance{}, ErrManualNotFound
	}
	paid := decimal.Zero
	for _, p := range r.manualPayments[id] {
		paid = paid.Add(p.Monto)
	}
	return ManualWithBalance{Cuenta: *c, Pagado: paid, Saldo: c.Total.Sub(paid)}, nil
}

func (r *memoryPayRepo) ListManual(ctx context.Context, filters ManualListFilters) ([]ManualWithBalance, int, error) {
	out := []ManualWithBalance{}
	for id := range r.manual {
		m, _ := r.GetManual(ctx, id)
		if filters.OnlyPending && !m.Saldo.IsPositive() {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (r *memoryPayRepo) POPayments(ctx context.Context, ordenID int64) ([]Pago, error) {
	return r.poPayments[ordenID], nil
}

func (r *memoryPayRepo) ManualPayments(ctx context.Context, cuentaID int64) ([]Pago, error) {
	return r.manualPayments[cuentaID], nil
}

type memoryPayTx struct {
	repo *memoryPayRepo
}

func (t *memoryPayTx) LockPO(ctx context.Context, id int64) (POTarget, error) {
	po, ok := t.repo.pos[id]
	if !ok {
		return POTarget{}, purchasing.ErrNotFound
	}
	return POTarget{ID: id, Numero: po.numero, Estado: po.estado, Total: po.total}, nil
}

func (t *memoryPayTx) SumPOPayments(ctx context.Context, ordenID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.repo.poPayments[ordenID] {
		sum = sum.Add(p.Monto)
	}
	return sum, nil
}

func (t *memoryPayTx) InsertPOPayment(ctx context.Context, ordenID int64, p Pago) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.poPayments[ordenID] = append(t.repo.poPayments[ordenID], p)
	return p.ID, nil
}

func (t *memoryPayTx) LockManual(ctx context.Context, id int64) (CuentaPagarManual, error) {
	c, ok := t.repo.manual[id]
	if !ok {
		return CuentaPagarManual{}, ErrManualNotFound
	}
	return *c, nil
}

func (t *memoryPayTx) SumManualPayments(ctx context.Context, cuentaID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.repo.manualPayments[cuentaID] {
		sum = sum.Add(p.Monto)
	}
	return sum, nil
}

func (t *memoryPayTx) InsertManualPayment(ctx context.Context, cuentaID int64, p Pago) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.manualPayments[cuentaID] = append(t.repo.manualPayments[cuentaID], p)
	return p.ID, nil
}

func (t *memoryPayTx) OpenShiftForUpdate(ctx context.Context, usuarioID int64) (int64, error) {
	id, ok := t.repo.openShifts[usuarioID]
	if !ok {
		return 0, cashbox.ErrNoOpenShift
	}
	return id, nil
}

func (t *memoryPayTx) InsertCashEntry(ctx context.Context, e cashbox.CajaMovimiento) (int64, error) {
	t.repo.nextID++
	e.ID = t.repo.nextID
	t.repo.cashEntries = append(t.repo.cashEntries, e)
	return e.ID, nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry audit.Entry) {}

var cajero = shared.Actor{UserID: 2, Role: shared.RoleCaja}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newPayService() (*Service, *memoryPayRepo) {
	repo := newMemoryPayRepo()
	repo.pos[1] = &fakePO{numero: "OC-20260829-0001", estado: purchasing.EstadoEnviada, total: dec(100000)}
	return NewService(repo, noopAudit{}), repo
}

func TestRegisterPOPayment(t *testing.T) {
	svc, repo := newPayService()
	ctx := context.Background()

	pago, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{
		TargetID: 1, Monto: dec(40000), Metodo: MetodoTransferencia, Referencia: "TRX-778",
	})
	require.NoError(t, err)
	require.True(t, pago.Monto.Equal(dec(40000)))
	require.Nil(t, pago.TurnoID)
	require.Empty(t, repo.cashEntries)
}

func TestRegisterPOPaymentExceedsBalance(t *testing.T) {
	svc, repo := newPayService()
	ctx := context.Background()

	_, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(60000), Metodo: MetodoTransferencia})
	require.NoError(t, err)

	_, err = svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(50000), Metodo: MetodoTransferencia})
	require.ErrorIs(t, err, ErrPaymentExceeds)
	meta := shared.MetaOf(err)
	require.Equal(t, "40000", meta["saldo"])
	require.Equal(t, "50000", meta["solicitado"])
	require.Len(t, repo.poPayments[1], 1)

	// exactly the balance is fine
	_, err = svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(40000), Metodo: MetodoTransferencia})
	require.NoError(t, err)
}

func TestRegisterPOPaymentCancelledOrder(t *testing.T) {
	svc, repo := newPayService()
	repo.pos[1].estado = purchasing.EstadoCancelada
	_, err := svc.RegisterPOPayment(context.Background(), cajero, PaymentInput{
		TargetID: 1, Monto: dec(1000), Metodo: MetodoTransferencia,
	})
	require.ErrorIs(t, err, ErrPOCancelled)
}

func TestRegisterPOPaymentCashNeedsOpenShift(t *testing.T) {
	svc, repo := newPayService()
	ctx := context.Background()

	_, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(1000), Metodo: MetodoEfectivo})
	require.ErrorIs(t, err, cashbox.ErrNoOpenShift)
	require.Empty(t, repo.poPayments[1])

	repo.openShifts[cajero.UserID] = 7
	pago, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(1000), Metodo: MetodoEfectivo})
	require.NoError(t, err)
	require.NotNil(t, pago.TurnoID)
	require.EqualValues(t, 7, *pago.TurnoID)

	require.Len(t, repo.cashEntries, 1)
	entry := repo.cashEntries[0]
	require.Equal(t, cashbox.EntryOut, entry.Tipo)
	require.True(t, entry.Monto.Equal(dec(1000)))
	require.Equal(t, "OC-20260829-0001", entry.Referencia)
}

func TestRegisterPOCorrection(t *testing.T) {
	svc, repo := newPayService()
	ctx := context.Background()
	repo.openShifts[cajero.UserID] = 7

	_, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(30000), Metodo: MetodoEfectivo})
	require.NoError(t, err)

	// reason is mandatory
	_, err = svc.RegisterPOCorrection(ctx, cajero, CorrectionInput{TargetID: 1, Monto: dec(5000), Metodo: MetodoEfectivo})
	require.ErrorIs(t, err, ErrMissingReason)

	// cannot correct more than was paid
	_, err = svc.RegisterPOCorrection(ctx, cajero, CorrectionInput{
		TargetID: 1, Monto: dec(40000), Metodo: MetodoEfectivo, Motivo: "monto digitado en exceso",
	})
	require.ErrorIs(t, err, ErrCorrectionExceeds)

	pago, err := svc.RegisterPOCorrection(ctx, cajero, CorrectionInput{
		TargetID: 1, Monto: dec(5000), Metodo: MetodoEfectivo, Motivo: "monto digitado en exceso",
	})
	require.NoError(t, err)
	require.True(t, pago.Monto.Equal(dec(-5000)))

	// the cash came back into the drawer
	last := repo.cashEntries[len(repo.cashEntries)-1]
	require.Equal(t, cashbox.EntryIn, last.Tipo)
	require.True(t, last.Monto.Equal(dec(5000)))

	// balance reflects the correction: 100000 - (30000 - 5000) = 75000 available
	_, err = svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(75000), Metodo: MetodoTransferencia})
	require.NoError(t, err)
}

func TestManualPayableLifecycle(t *testing.T) {
	svc, _ := newPayService()
	ctx := context.Background()

	_, err := svc.CreateManualPayable(ctx, cajero, CuentaPagarManual{ProveedorID: 3, Descripcion: " ", Total: dec(0)})
	require.ErrorIs(t, err, ErrInvalidPayable)

	cuenta, err := svc.CreateManualPayable(ctx, cajero, CuentaPagarManual{
		ProveedorID: 3, Descripcion: "Arriendo bodega agosto", Total: dec(250000),
	})
	require.NoError(t, err)

	_, err = svc.RegisterManualPayment(ctx, cajero, PaymentInput{
		TargetID: cuenta.ID, Monto: dec(100000), Metodo: MetodoTransferencia,
	})
	require.NoError(t, err)

	got, err := svc.GetManualPayable(ctx, cajero, cuenta.ID)
	require.NoError(t, err)
	require.True(t, got.Pagado.Equal(dec(100000)))
	require.True(t, got.Saldo.Equal(dec(150000)))

	_, err = svc.RegisterManualPayment(ctx, cajero, PaymentInput{
		TargetID: cuenta.ID, Monto: dec(200000), Metodo: MetodoTransferencia,
	})
	require.ErrorIs(t, err, ErrPaymentExceeds)

	pending, _, err := svc.ListManualPayables(ctx, cajero, ManualListFilters{OnlyPending: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = svc.RegisterManualPayment(ctx, cajero, PaymentInput{
		TargetID: cuenta.ID, Monto: dec(150000), Metodo: MetodoTransferencia,
	})
	require.NoError(t, err)
	pending, _, err = svc.ListManualPayables(ctx, cajero, ManualListFilters{OnlyPending: true})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPaymentValidation(t *testing.T) {
	svc, _ := newPayService()
	ctx := context.Background()

	_, err := svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(0), Metodo: MetodoTransferencia})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RegisterPOPayment(ctx, cajero, PaymentInput{TargetID: 1, Monto: dec(100), Metodo: "CRIPTO"})
	require.ErrorIs(t, err, ErrInvalidMethod)

	empleado := shared.Actor{UserID: 3, Role: shared.RoleEmpleado}
	_, err = svc.RegisterPOPayment(ctx, empleado, PaymentInput{TargetID: 1, Monto: dec(100), Metodo: MetodoTransferencia})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}
