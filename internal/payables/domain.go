package payables

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Payment methods. Cash payments are tied to the payer's open shift.
const (
	MetodoEfectivo      = "EFECTIVO"
	MetodoTransferencia = "TRANSFERENCIA"
	MetodoTarjeta       = "TARJETA"
	MetodoCheque        = "CHEQUE"
)

func validMethod(m string) bool {
	switch m {
	case MetodoEfectivo, MetodoTransferencia, MetodoTarjeta, MetodoCheque:
		return true
	}
	return false
}

// Pago is one payment row. Corrections are ordinary rows with a negative
// amount and a mandatory reason; payments are never deleted.
type Pago struct {
	ID         int64           `json:"id"`
	Monto      decimal.Decimal `json:"monto"`
	Metodo     string          `json:"metodo"`
	Referencia string          `json:"referencia,omitempty"`
	Motivo     string          `json:"motivo,omitempty"`
	TurnoID    *int64          `json:"turno_id,omitempty"`
	ActorID    int64           `json:"actor_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CuentaPagarManual is a payable registered outside purchasing (rent,
// services, one-off invoices).
type CuentaPagarManual struct {
	ID          int64           `json:"id"`
	ProveedorID int64           `json:"proveedor_id"`
	Descripcion string          `json:"descripcion"`
	Total       decimal.Decimal `json:"total"`
	Vencimiento *time.Time      `json:"vencimiento,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ManualWithBalance bundles a manual payable with its paid and outstanding
// figures.
type ManualWithBalance struct {
	Cuenta CuentaPagarManual `json:"cuenta"`
	Pagado decimal.Decimal   `json:"pagado"`
	Saldo  decimal.Decimal   `json:"saldo"`
}

// ManualListFilters narrows manual payable listings.
type ManualListFilters struct {
	ProveedorID int64
	OnlyPending bool
	Page        int
	PerPage     int
}

var (
	ErrPaymentExceeds    = shared.E(shared.KindBusiness, "PAYMENT_EXCEEDS_BALANCE", "el pago excede el saldo pendiente")
	ErrCorrectionExceeds = shared.E(shared.KindBusiness, "CORRECTION_EXCEEDS_PAID", "la corrección excede el total pagado")
	ErrPOCancelled       = shared.E(shared.KindConflict, "PO_CANCELLED", "la orden cancelada no admite pagos")
	ErrInvalidAmount     = shared.E(shared.KindValidation, "INVALID_AMOUNT", "monto inválido")
	ErrInvalidMethod     = shared.E(shared.KindValidation, "INVALID_PAYMENT_METHOD", "método de pago inválido")
	ErrMissingReason     = shared.E(shared.KindValidation, "MISSING_REASON", "motivo de corrección requerido")
	ErrManualNotFound    = shared.E(shared.KindNotFound, "PAYABLE_NOT_FOUND", "cuenta por pagar no encontrada")
	ErrInvalidPayable    = shared.E(shared.KindValidation, "INVALID_PAYABLE", "descripción y total > 0 requeridos")
)
