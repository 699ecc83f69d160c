package inventory

import (
	"time"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// MovementKind is the movement type.
type MovementKind string

const (
	KindEntry  MovementKind = "ENTRADA"
	KindExit   MovementKind = "SALIDA"
	KindAdjust MovementKind = "AJUSTE"
)

// Valid reports whether the kind is one of the three movement types.
func (k MovementKind) Valid() bool {
	return k == KindEntry || k == KindExit || k == KindAdjust
}

// Movimiento is an immutable inventory movement. Cantidad is always positive
// for ENTRADA/SALIDA and a signed delta for AJUSTE; StockAnterior and
// StockNuevo record the transition so the log replays without recomputation.
type Movimiento struct {
	ID            int64        `json:"id"`
	RepuestoID    int64        `json:"repuesto_id"`
	Tipo          MovementKind `json:"tipo"`
	Cantidad      int64        `json:"cantidad"`
	StockAnterior int64        `json:"stock_anterior"`
	StockNuevo    int64        `json:"stock_nuevo"`
	Motivo        string       `json:"motivo"`
	Referencia    string       `json:"referencia,omitempty"`
	ActorID       int64        `json:"actor_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// MovementInput describes one requested movement.
type MovementInput struct {
	RepuestoID int64
	Tipo       MovementKind
	Cantidad   int64
	Motivo     string
	Referencia string
}

// Result is a committed movement plus the over-max warning for entries.
type Result struct {
	Movimiento Movimiento `json:"movimiento"`
	Warning    bool       `json:"advertencia_stock_maximo"`
}

// ListFilters narrows the movement log.
type ListFilters struct {
	RepuestoID int64
	Tipo       MovementKind
	Referencia string
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

var (
	ErrInvalidKind       = shared.E(shared.KindValidation, "INVALID_MOVEMENT_KIND", "tipo de movimiento inválido")
	ErrInvalidQuantity   = shared.E(shared.KindValidation, "INVALID_QUANTITY", "cantidad inválida para el tipo de movimiento")
	ErrMissingReason     = shared.E(shared.KindValidation, "MISSING_REASON", "motivo requerido")
	ErrInsufficientStock = shared.E(shared.KindBusiness, "INSUFFICIENT_STOCK", "stock insuficiente para el movimiento")
	ErrDuplicateMovement = shared.E(shared.KindConflict, "DUPLICATE_MOVEMENT", "movimiento ya registrado para la referencia")
	ErrPartDeleted       = shared.E(shared.KindConflict, "EDIT_DELETED", "el repuesto fue eliminado y no admite movimientos")
	ErrPartNotFound      = shared.E(shared.KindNotFound, "PART_NOT_FOUND", "repuesto no encontrado")
	ErrEmptyBatch        = shared.E(shared.KindValidation, "EMPTY_BATCH", "el lote no contiene movimientos")
)
