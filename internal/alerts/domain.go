package alerts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// AlertKind enumerates the alert families.
type AlertKind string

const (
	KindLowStock        AlertKind = "STOCK_BAJO"
	KindShiftDifference AlertKind = "DIFERENCIA_CAJA"
	KindLongShift       AlertKind = "TURNO_LARGO"
)

// Severity orders alerts for the dashboard.
type Severity string

const (
	SeverityCritical Severity = "CRITICA"
	SeverityWarning  Severity = "ADVERTENCIA"
	SeverityInfo     Severity = "INFO"
)

// Alert states. An acknowledged alert is still open; only closing removes it
// from the reconciler's view.
const (
	StateOpen         = "ABIERTA"
	StateAcknowledged = "RECONOCIDA"
	StateClosed       = "CERRADA"
)

// Alerta is a system-raised condition tied to a part or a cash shift.
type Alerta struct {
	ID             int64          `json:"id"`
	Tipo           AlertKind      `json:"tipo"`
	Severidad      Severity       `json:"severidad"`
	Estado         string         `json:"estado"`
	RepuestoID     *int64         `json:"repuesto_id,omitempty"`
	TurnoID        *int64         `json:"turno_id,omitempty"`
	Mensaje        string         `json:"mensaje"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	AcknowledgedBy *int64         `json:"reconocida_por,omitempty"`
	AcknowledgedAt *time.Time     `json:"reconocida_at,omitempty"`
	ClosedAt       *time.Time     `json:"cerrada_at,omitempty"`
}

// ShiftClose carries the closed-shift figures the evaluator needs.
type ShiftClose struct {
	TurnoID    int64
	UserID     int64
	Difference decimal.Decimal
}

// ListFilters narrows alert listings.
type ListFilters struct {
	Tipo       AlertKind
	Estado     string
	RepuestoID int64
	Page       int
	PerPage    int
}

var (
	ErrAlertNotFound = shared.E(shared.KindNotFound, "ALERT_NOT_FOUND", "alerta no encontrada")
	ErrAlertClosed   = shared.E(shared.KindConflict, "ALERT_CLOSED", "la alerta ya fue cerrada")
)
