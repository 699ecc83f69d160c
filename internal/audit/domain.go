package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry represents a record stored in auditoria. Rows are append-only.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Module     string         `json:"modulo"`
	Action     string         `json:"accion"`
	RefID      string         `json:"referencia,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"fecha"`
}

// PartSnapshot is the JSON snapshot stored when a spare part is permanently
// deleted. It keeps the business identity of the row after its code has been
// mangled.
type PartSnapshot struct {
	RepuestoID      int64           `json:"repuesto_id"`
	Codigo          string          `json:"codigo"`
	Nombre          string          `json:"nombre"`
	StockActual     int64           `json:"stock_actual"`
	PrecioCompra    decimal.Decimal `json:"precio_compra"`
	PrecioVenta     decimal.Decimal `json:"precio_venta"`
	CategoriaNombre string          `json:"categoria_nombre,omitempty"`
	ProveedorNombre string          `json:"proveedor_nombre,omitempty"`
}

// DeletionRecord is a row of registro_eliminacion_repuestos.
type DeletionRecord struct {
	ID         int64
	RepuestoID int64
	ActorID    int64
	Reason     string
	Snapshot   PartSnapshot
	DeletedAt  time.Time
}

// TimelineFilters narrows the audit listing.
type TimelineFilters struct {
	Module  string
	Action  string
	ActorID int64
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}
