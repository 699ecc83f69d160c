package parts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Repuesto is a spare part. The code is unique among non-deleted rows; a
// permanently deleted part keeps its row with the code rewritten to
// "<code>_ELIM_<id>" so the original code can be reused.
type Repuesto struct {
	ID                int64
	Codigo            string
	Nombre            string
	Descripcion       string
	CategoriaID       *int64
	ProveedorID       *int64
	UbicacionID       *int64
	EstanteID         *int64
	NivelID           *int64
	FilaID            *int64
	StockActual       int64
	StockMinimo       int64
	StockMaximo       int64
	PrecioCompra      decimal.Decimal
	PrecioVenta       decimal.Decimal
	UnidadMedida      string
	Activo            bool
	Eliminado         bool
	EliminadoAt       *time.Time
	MotivoEliminacion string
	EliminadoPor      *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Compatibilidad relates a part to a vehicle make/model/year range.
type Compatibilidad struct {
	ID         int64  `json:"id"`
	RepuestoID int64  `json:"repuesto_id"`
	Marca      string `json:"marca"`
	Modelo     string `json:"modelo"`
	AnioDesde  *int   `json:"anio_desde"`
	AnioHasta  *int   `json:"anio_hasta"`
	Motor      string `json:"motor"`
}

// Categoria is the trivial part-category catalogue.
type Categoria struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Activo bool   `json:"activo"`
}

// Proveedor is the supplier catalogue.
type Proveedor struct {
	ID       int64  `json:"id"`
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Telefono string `json:"telefono"`
	Activo   bool   `json:"activo"`
}

// ListFilters narrows part listings. Search is matched against code and name
// after diacritic folding. BodegaIDs comes from the caller's location scope;
// nil means unrestricted.
type ListFilters struct {
	CategoriaID int64
	ProveedorID int64
	UbicacionID int64
	BodegaIDs   []int64
	LowStock    bool
	Search      string
	Page        int
	PerPage     int
	OnlyActive  bool
}

const deletedCodeSuffix = "_ELIM_"

// MinDeleteReasonLen is the minimum length of a permanent-deletion reason.
const MinDeleteReasonLen = 10

var (
	ErrNotFound        = shared.E(shared.KindNotFound, "PART_NOT_FOUND", "repuesto no encontrado")
	ErrDuplicateCode   = shared.E(shared.KindConflict, "DUPLICATE_PART_CODE", "código de repuesto ya registrado")
	ErrEditDeleted     = shared.E(shared.KindConflict, "EDIT_DELETED", "el repuesto fue eliminado y no admite cambios")
	ErrStockDirectEdit = shared.E(shared.KindValidation, "STOCK_DIRECT_EDIT", "stock_actual solo se modifica mediante movimientos")
	ErrReasonTooShort  = shared.E(shared.KindValidation, "REASON_TOO_SHORT", "el motivo debe tener al menos 10 caracteres")
	ErrInvalidStock    = shared.E(shared.KindValidation, "INVALID_STOCK_RANGE", "stock_maximo debe ser >= stock_minimo y >= 1")
	ErrInvalidPrice    = shared.E(shared.KindValidation, "INVALID_PRICE", "precio_venta debe ser >= precio_compra y ambos >= 0")
	ErrInvalidYears    = shared.E(shared.KindValidation, "INVALID_YEAR_RANGE", "año desde debe ser <= año hasta")
	ErrMissingCode     = shared.E(shared.KindValidation, "MISSING_CODE", "código requerido")
	ErrMissingName     = shared.E(shared.KindValidation, "MISSING_NAME", "nombre requerido")

	ErrCategoriaNotFound = shared.E(shared.KindNotFound, "CATEGORIA_NOT_FOUND", "categoría no encontrada")
	ErrCategoriaInUse    = shared.E(shared.KindConflict, "CATEGORIA_IN_USE", "la categoría tiene repuestos asociados")
	ErrProveedorNotFound = shared.E(shared.KindNotFound, "PROVEEDOR_NOT_FOUND", "proveedor no encontrado")
)
