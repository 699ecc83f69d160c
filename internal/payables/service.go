package payables

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/cashbox"
	"github.com/tallerpro/tallerpro/internal/purchasing"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts payment storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertManual(ctx context.Context, c CuentaPagarManual) (int64, error)
	GetManual(ctx context.Context, id int64) (ManualWithBalance, error)
	ListManual(ctx context.Context, filters ManualListFilters) ([]ManualWithBalance, int, error)
	POPayments(ctx context.Context, ordenID int64) ([]Pago, error)
	ManualPayments(ctx context.Context, cuentaID int64) ([]Pago, error)
}

// AuditPort records payment activity.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns accounts payable: payments against purchase orders and manual
// payables.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the payables service.
func NewService(repo RepositoryPort, auditor AuditPort) *Service {
	return &Service{repo: repo, audit: auditor}
}

// PaymentInput describes one payment registration.
type PaymentInput struct {
	TargetID   int64
	Monto      decimal.Decimal
	Metodo     string
	Referencia string
}

// CorrectionInput describes a correction: a negative payment with a reason.
type CorrectionInput struct {
	TargetID int64
	Monto    decimal.Decimal
	Metodo   string
	Motivo   string
}

// RegisterPOPayment books a payment against a purchase order. The order row
// stays locked while the outstanding balance is checked, so two concurrent
// payments cannot overshoot together. Cash payments also debit the payer's
// open shift.
func (s *Service) RegisterPOPayment(ctx context.Context, actor shared.Actor, input PaymentInput) (Pago, error) {
	if err := actor.Require(shared.PermPaymentsEdit); err != nil {
		return Pago{}, err
	}
	if !input.Monto.IsPositive() {
		return Pago{}, ErrInvalidAmount
	}
	if !validMethod(input.Metodo) {
		return Pago{}, ErrInvalidMethod
	}

	var (
		pago   Pago
		numero string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, input.TargetID)
		if err != nil {
			return err
		}
		if po.Estado == purchasing.EstadoCancelada {
			return ErrPOCancelled
		}
		numero = po.Numero

		paid, err := tx.SumPOPayments(ctx, po.ID)
		if err != nil {
			return err
		}
		outstanding := po.Total.Sub(paid)
		if input.Monto.GreaterThan(outstanding) {
			return ErrPaymentExceeds.WithMeta(map[string]any{
				"total":      po.Total.String(),
				"pagado":     paid.String(),
				"saldo":      outstanding.String(),
				"solicitado": input.Monto.String(),
			})
		}

		pago = Pago{
			Monto:      input.Monto,
			Metodo:     input.Metodo,
			Referencia: input.Referencia,
			ActorID:    actor.UserID,
		}
		if input.Metodo == MetodoEfectivo {
			turnoID, err := tx.OpenShiftForUpdate(ctx, actor.UserID)
			if err != nil {
				return err
			}
			pago.TurnoID = &turnoID
			if _, err := tx.InsertCashEntry(ctx, cashbox.CajaMovimiento{
				TurnoID:    turnoID,
				Tipo:       cashbox.EntryOut,
				Monto:      input.Monto,
				Concepto:   fmt.Sprintf("pago orden %s", po.Numero),
				Referencia: po.Numero,
				ActorID:    actor.UserID,
			}); err != nil {
				return err
			}
		}
		pago.ID, err = tx.InsertPOPayment(ctx, po.ID, pago)
		return err
	})
	if err != nil {
		return Pago{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "pagos", Action: "PAGO_ORDEN", RefID: numero,
		Meta: map[string]any{"orden_id": input.TargetID, "monto": input.Monto.String(), "metodo": input.Metodo},
	})
	return pago, nil
}

// RegisterPOCorrection books a negative payment against a purchase order.
// Nothing is ever deleted; the correction restores the outstanding balance.
// Cash corrections return the money to the payer's open shift.
func (s *Service) RegisterPOCorrection(ctx context.Context, actor shared.Actor, input CorrectionInput) (Pago, error) {
	if err := actor.Require(shared.PermPaymentsEdit); err != nil {
		return Pago{}, err
	}
	if !input.Monto.IsPositive() {
		return Pago{}, ErrInvalidAmount
	}
	if !validMethod(input.Metodo) {
		return Pago{}, ErrInvalidMethod
	}
	if strings.TrimSpace(input.Motivo) == "" {
		return Pago{}, ErrMissingReason
	}

	var (
		pago   Pago
		numero string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, input.TargetID)
		if err != nil {
			return err
		}
		numero = po.Numero

		paid, err := tx.SumPOPayments(ctx, po.ID)
		if err != nil {
			return err
		}
		if input.Monto.GreaterThan(paid) {
			return ErrCorrectionExceeds.WithMeta(map[string]any{
				"pagado":     paid.String(),
				"solicitado": input.Monto.String(),
			})
		}

		pago = Pago{
			Monto:   input.Monto.Neg(),
			Metodo:  input.Metodo,
			Motivo:  strings.TrimSpace(input.Motivo),
			ActorID: actor.UserID,
		}
		if input.Metodo == MetodoEfectivo {
			turnoID, err := tx.OpenShiftForUpdate(ctx, actor.UserID)
			if err != nil {
				return err
			}
			pago.TurnoID = &turnoID
			if _, err := tx.InsertCashEntry(ctx, cashbox.CajaMovimiento{
				TurnoID:    turnoID,
				Tipo:       cashbox.EntryIn,
				Monto:      input.Monto,
				Concepto:   fmt.Sprintf("corrección pago orden %s", po.Numero),
				Referencia: po.Numero,
				ActorID:    actor.UserID,
			}); err != nil {
				return err
			}
		}
		pago.ID, err = tx.InsertPOPayment(ctx, po.ID, pago)
		return err
	})
	if err != nil {
		return Pago{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "pagos", Action: "CORRECCION_ORDEN", RefID: numero,
		Meta: map[string]any{"orden_id": input.TargetID, "monto": input.Monto.String(), "motivo": input.Motivo},
	})
	return pago, nil
}

// CreateManualPayable registers a payable outside purchasing.
func (s *Service) CreateManualPayable(ctx context.Context, actor shared.Actor, c CuentaPagarManual) (CuentaPagarManual, error) {
	if err := actor.Require(shared.PermPaymentsEdit); err != nil {
		return CuentaPagarManual{}, err
	}
	c.Descripcion = strings.TrimSpace(c.Descripcion)
	if c.Descripcion == "" || !c.Total.IsPositive() {
		return CuentaPagarManual{}, ErrInvalidPayable
	}
	c.CreatedBy = actor.UserID
	id, err := s.repo.InsertManual(ctx, c)
	if err != nil {
		return CuentaPagarManual{}, err
	}
	c.ID = id
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "pagos", Action: "CREAR_CUENTA", RefID: fmt.Sprintf("%d", id),
		Meta: map[string]any{"total": c.Total.String()},
	})
	return c, nil
}

// RegisterManualPayment books a payment against a manual payable, with the
// same balance and cash-shift rules as order payments.
func (s *Service) RegisterManualPayment(ctx context.Context, actor shared.Actor, input PaymentInput) (Pago, error) {
	if err := actor.Require(shared.PermPaymentsEdit); err != nil {
		return Pago{}, err
	}
	if !input.Monto.IsPositive() {
		return Pago{}, ErrInvalidAmount
	}
	if !validMethod(input.Metodo) {
		return Pago{}, ErrInvalidMethod
	}

	var pago Pago
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cuenta, err := tx.LockManual(ctx, input.TargetID)
		if err != nil {
			return err
		}
		paid, err := tx.SumManualPayments(ctx, cuenta.ID)
		if err != nil {
			return err
		}
		outstanding := cuenta.Total.Sub(paid)
		if input.Monto.GreaterThan(outstanding) {
			return ErrPaymentExceeds.WithMeta(map[string]any{
				"total":      cuenta.Total.String(),
				"pagado":     paid.String(),
				"saldo":      outstanding.String(),
				"solicitado": input.Monto.String(),
			})
		}

		pago = Pago{
			Monto:      input.Monto,
			Metodo:     input.Metodo,
			Referencia: input.Referencia,
			ActorID:    actor.UserID,
		}
		if input.Metodo == MetodoEfectivo {
			turnoID, err := tx.OpenShiftForUpdate(ctx, actor.UserID)
			if err != nil {
				return err
			}
			pago.TurnoID = &turnoID
			if _, err := tx.InsertCashEntry(ctx, cashbox.CajaMovimiento{
				TurnoID:  turnoID,
				Tipo:     cashbox.EntryOut,
				Monto:    input.Monto,
				Concepto: fmt.Sprintf("pago cuenta %d: %s", cuenta.ID, cuenta.Descripcion),
				ActorID:  actor.UserID,
			}); err != nil {
				return err
			}
		}
		pago.ID, err = tx.InsertManualPayment(ctx, cuenta.ID, pago)
		return err
	})
	if err != nil {
		return Pago{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "pagos", Action: "PAGO_CUENTA", RefID: fmt.Sprintf("%d", input.TargetID),
		Meta: map[string]any{"monto": input.Monto.String(), "metodo": input.Metodo},
	})
	return pago, nil
}

// GetManualPayable loads a manual payable with its balance.
func (s *Service) GetManualPayable(ctx context.Context, actor shared.Actor, id int64) (ManualWithBalance, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return ManualWithBalance{}, err
	}
	return s.repo.GetManual(ctx, id)
}

// ListManualPayables pages manual payables with balances.
func (s *Service) ListManualPayables(ctx context.Context, actor shared.Actor, filters ManualListFilters) ([]ManualWithBalance, shared.Pagination, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.repo.ListManual(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// POPayments lists a purchase order's payment history.
func (s *Service) POPayments(ctx context.Context, actor shared.Actor, ordenID int64) ([]Pago, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return nil, err
	}
	return s.repo.POPayments(ctx, ordenID)
}

// ManualPayments lists a manual payable's payment history.
func (s *Service) ManualPayments(ctx context.Context, actor shared.Actor, cuentaID int64) ([]Pago, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return nil, err
	}
	return s.repo.ManualPayments(ctx, cuentaID)
}
