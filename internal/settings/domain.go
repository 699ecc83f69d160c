package settings

import (
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// Setting keys persisted in the settings table.
const (
	KeyTaxPercentage            = "tax_percentage"
	KeyShiftLongThresholdHours  = "shift_long_threshold_hours"
	KeyShiftDifferenceThreshold = "shift_difference_threshold"
	KeyPONumberPrefix           = "po_number_prefix"
)

// Values holds the business settings read at operation time.
type Values struct {
	TaxPercentage            decimal.Decimal `json:"tax_percentage"`
	ShiftLongThresholdHours  int             `json:"shift_long_threshold_hours"`
	ShiftDifferenceThreshold decimal.Decimal `json:"shift_difference_threshold"`
	PONumberPrefix           string          `json:"po_number_prefix"`
}

// Defaults applied when a key has no row.
func Defaults() Values {
	return Values{
		TaxPercentage:            decimal.NewFromInt(19),
		ShiftLongThresholdHours:  12,
		ShiftDifferenceThreshold: decimal.NewFromInt(5),
		PONumberPrefix:           "OC-",
	}
}

// ErrUnknownKey indicates an update against a key the core does not manage.
var ErrUnknownKey = shared.E(shared.KindValidation, "UNKNOWN_SETTING", "configuración desconocida")
