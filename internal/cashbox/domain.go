package cashbox

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Shift states.
const (
	EstadoAbierto = "ABIERTO"
	EstadoCerrado = "CERRADO"
)

// Cash entry directions.
const (
	EntryIn  = "INGRESO"
	EntryOut = "EGRESO"
)

// CajaTurno is one cash shift. A user holds at most one open shift; the
// expected figure and the difference are fixed at close time and never
// recomputed.
type CajaTurno struct {
	ID            int64           `json:"id"`
	UsuarioID     int64           `json:"usuario_id"`
	Estado        string          `json:"estado"`
	MontoApertura decimal.Decimal `json:"monto_apertura"`
	MontoCierre   decimal.Decimal `json:"monto_cierre"`
	MontoEsperado decimal.Decimal `json:"monto_esperado"`
	Diferencia    decimal.Decimal `json:"diferencia"`
	OpenedAt      time.Time       `json:"abierto_at"`
	ClosedAt      *time.Time      `json:"cerrado_at,omitempty"`
}

// CajaMovimiento is one cash ledger entry inside a shift.
type CajaMovimiento struct {
	ID         int64           `json:"id"`
	TurnoID    int64           `json:"turno_id"`
	Tipo       string          `json:"tipo"`
	Monto      decimal.Decimal `json:"monto"`
	Concepto   string          `json:"concepto"`
	Referencia string          `json:"referencia,omitempty"`
	ActorID    int64           `json:"actor_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListFilters narrows shift listings.
type ListFilters struct {
	UsuarioID int64
	Estado    string
	Page      int
	PerPage   int
}

var (
	ErrShiftAlreadyOpen = shared.E(shared.KindConflict, "SHIFT_ALREADY_OPEN", "el usuario ya tiene un turno abierto")
	ErrNoOpenShift      = shared.E(shared.KindBusiness, "NO_OPEN_SHIFT", "el usuario no tiene un turno de caja abierto")
	ErrShiftClosed      = shared.E(shared.KindConflict, "SHIFT_ALREADY_CLOSED", "el turno ya fue cerrado")
	ErrShiftNotFound    = shared.E(shared.KindNotFound, "SHIFT_NOT_FOUND", "turno no encontrado")
	ErrInvalidAmount    = shared.E(shared.KindValidation, "INVALID_AMOUNT", "monto inválido")
	ErrInvalidEntryKind = shared.E(shared.KindValidation, "INVALID_ENTRY_KIND", "tipo de movimiento de caja inválido")
	ErrMissingConcept   = shared.E(shared.KindValidation, "MISSING_CONCEPT", "concepto requerido")
)
