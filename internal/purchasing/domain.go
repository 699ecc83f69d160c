package purchasing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Estado is the purchase-order lifecycle state.
type Estado string

const (
	EstadoBorrador        Estado = "BORRADOR"
	EstadoAutorizada      Estado = "AUTORIZADA"
	EstadoEnviada         Estado = "ENVIADA"
	EstadoRecibidaParcial Estado = "RECIBIDA_PARCIAL"
	EstadoRecibida        Estado = "RECIBIDA"
	EstadoCancelada       Estado = "CANCELADA"
)

// Terminal reports whether no further transitions leave the state.
func (e Estado) Terminal() bool {
	return e == EstadoRecibida || e == EstadoCancelada
}

// transitions is the authoritative state machine. Cancellation is handled
// separately: any non-terminal state may cancel.
var transitions = map[Estado]Estado{
	EstadoBorrador:   EstadoAutorizada,
	EstadoAutorizada: EstadoEnviada,
}

// receivableStates admit Receive calls.
var receivableStates = map[Estado]bool{
	EstadoEnviada:         true,
	EstadoRecibidaParcial: true,
}

// OrdenCompra is a purchase order. Numero is allocated at creation with a
// daily monotonic counter and stays unique forever. Total is the estimated
// figure, quantity times estimated unit price summed over the lines.
type OrdenCompra struct {
	ID              int64           `json:"id"`
	Numero          string          `json:"numero"`
	ProveedorID     int64           `json:"proveedor_id"`
	Estado          Estado          `json:"estado"`
	Total           decimal.Decimal `json:"total"`
	Notas           string          `json:"notas,omitempty"`
	Recepciones     int             `json:"recepciones"`
	RefProveedor    string          `json:"referencia_proveedor,omitempty"`
	EntregaEsperada *time.Time      `json:"entrega_esperada,omitempty"`
	ReciboURL       string          `json:"recibo_url,omitempty"`
	EnviadaAt       *time.Time      `json:"enviada_at,omitempty"`
	RecibidaAt      *time.Time      `json:"recibida_at,omitempty"`
	MotivoCancel    string          `json:"motivo_cancelacion,omitempty"`
	EvidenciaCancel string          `json:"evidencia_cancelacion,omitempty"`
	CanceladaAt     *time.Time      `json:"cancelada_at,omitempty"`
	CanceladaPor    int64           `json:"cancelada_por,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DetalleOrdenCompra is one PO line. Either RepuestoID references an existing
// part, or CodigoNuevo names a part that does not exist yet; receiving such a
// line creates a placeholder part and links it. PrecioReal is the invoiced
// unit price set at receipt; costing falls back to PrecioUnitario while nil.
type DetalleOrdenCompra struct {
	ID               int64            `json:"id"`
	OrdenID          int64            `json:"orden_id"`
	RepuestoID       *int64           `json:"repuesto_id,omitempty"`
	CodigoNuevo      string           `json:"codigo_nuevo,omitempty"`
	Descripcion      string           `json:"descripcion"`
	Cantidad         int64            `json:"cantidad"`
	CantidadRecibida int64            `json:"cantidad_recibida"`
	PrecioUnitario   decimal.Decimal  `json:"precio_unitario"`
	PrecioReal       *decimal.Decimal `json:"precio_unitario_real,omitempty"`
}

// EffectivePrice is the invoiced unit price when known, the estimate otherwise.
func (l DetalleOrdenCompra) EffectivePrice() decimal.Decimal {
	if l.PrecioReal != nil {
		return *l.PrecioReal
	}
	return l.PrecioUnitario
}

// LineInput describes a PO line at creation.
type LineInput struct {
	RepuestoID     *int64
	CodigoNuevo    string
	Descripcion    string
	Cantidad       int64
	PrecioUnitario decimal.Decimal
}

// CreateInput describes a new draft order.
type CreateInput struct {
	ProveedorID     int64
	Notas           string
	RefProveedor    string
	EntregaEsperada *time.Time
	Lines           []LineInput
}

// ReceiveLine is one received quantity keyed by line id.
type ReceiveLine struct {
	DetalleID  int64
	Cantidad   int64
	PrecioReal *decimal.Decimal
}

// ReceiveInput describes one receipt. Referencia is the client's idempotency
// key for the stock entries; when empty the service derives one from the
// order number. Completa asserts the receipt leaves every line fully served.
type ReceiveInput struct {
	Lines      []ReceiveLine
	Referencia string
	ReciboURL  string
	Completa   bool
}

// OrderWithLines bundles an order and its lines for reads.
type OrderWithLines struct {
	Orden  OrdenCompra          `json:"orden"`
	Lineas []DetalleOrdenCompra `json:"lineas"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Estado      Estado
	ProveedorID int64
	Search      string
	Page        int
	PerPage     int
}

// PlaceholderName marks parts auto-created at receipt for code_new lines.
const PlaceholderName = "PDTE EDITAR"

var (
	ErrNotFound          = shared.E(shared.KindNotFound, "PO_NOT_FOUND", "orden de compra no encontrada")
	ErrLineNotFound      = shared.E(shared.KindNotFound, "PO_LINE_NOT_FOUND", "línea de orden no encontrada")
	ErrNoLines           = shared.E(shared.KindValidation, "PO_NO_LINES", "la orden requiere al menos una línea")
	ErrInvalidLine       = shared.E(shared.KindValidation, "PO_INVALID_LINE", "línea inválida: cantidad > 0 y repuesto o código nuevo")
	ErrAlreadyTerminal   = shared.E(shared.KindBusiness, "PO_ALREADY_TERMINAL", "la orden está en estado terminal")
	ErrInvalidTransition = shared.E(shared.KindConflict, "PO_INVALID_TRANSITION", "transición de estado inválida")
	ErrReceiveExceeds    = shared.E(shared.KindBusiness, "RECEIVE_EXCEEDS_ORDERED", "cantidad recibida excede la cantidad ordenada")
	ErrIncompleteReceipt = shared.E(shared.KindBusiness, "PO_INCOMPLETE_RECEIPT", "la recepción no completa todas las líneas")
	ErrMissingCancelInfo = shared.E(shared.KindValidation, "PO_MISSING_CANCEL_REASON", "motivo de cancelación requerido")
	ErrNumberExhausted   = shared.E(shared.KindTransient, "PO_NUMBER_EXHAUSTED", "no fue posible asignar número de orden")
)
