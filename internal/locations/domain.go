package locations

import (
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Bodega is the top-level warehouse.
type Bodega struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Activo bool   `json:"activo"`
}

// Ubicacion is a zone or aisle inside a Bodega. (bodega, codigo) is unique.
type Ubicacion struct {
	ID       int64  `json:"id"`
	BodegaID int64  `json:"bodega_id"`
	Codigo   string `json:"codigo"`
	Nombre   string `json:"nombre"`
	Activo   bool   `json:"activo"`
}

// Estante is a shelf inside an Ubicacion. (ubicacion, codigo) is unique.
type Estante struct {
	ID          int64  `json:"id"`
	UbicacionID int64  `json:"ubicacion_id"`
	Codigo      string `json:"codigo"`
	Nombre      string `json:"nombre"`
	Activo      bool   `json:"activo"`
}

// Nivel is a global vertical-level code.
type Nivel struct {
	ID     int64  `json:"id"`
	Codigo string `json:"codigo"`
	Activo bool   `json:"activo"`
}

// Fila is a global horizontal-row code.
type Fila struct {
	ID     int64  `json:"id"`
	Codigo string `json:"codigo"`
	Activo bool   `json:"activo"`
}

// Scope is the set of bodegas visible to a caller. All=true means the caller
// sees every bodega (administrators and users with no assignment rows).
type Scope struct {
	All       bool
	BodegaIDs []int64
}

var (
	ErrBodegaNotFound    = shared.E(shared.KindNotFound, "BODEGA_NOT_FOUND", "bodega no encontrada")
	ErrUbicacionNotFound = shared.E(shared.KindNotFound, "UBICACION_NOT_FOUND", "ubicación no encontrada")
	ErrEstanteNotFound   = shared.E(shared.KindNotFound, "ESTANTE_NOT_FOUND", "estante no encontrado")
	ErrDuplicateName     = shared.E(shared.KindConflict, "DUPLICATE_NAME", "nombre ya registrado")
	ErrDuplicateCode     = shared.E(shared.KindConflict, "DUPLICATE_CODE", "código ya registrado")
	ErrMissingName       = shared.E(shared.KindValidation, "MISSING_NAME", "nombre requerido")
	ErrMissingCode       = shared.E(shared.KindValidation, "MISSING_CODE", "código requerido")
)
