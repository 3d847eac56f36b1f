package underwriting

import (
	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
)

// ProtocolDefaults are the house underwriting assumptions for a property
// type. They supply missing deal inputs and, when no agency product is
// selected, the sizing thresholds.
type ProtocolDefaults struct {
	OccupancyPercent     decimal.Decimal `json:"occupancy_percent"`
	OpExRatioPercent     decimal.Decimal `json:"opex_ratio_percent"`
	MinDSCR              decimal.Decimal `json:"min_dscr"`
	MaxLTVPercent        decimal.Decimal `json:"max_ltv_percent"`
	ManagementFeePercent decimal.Decimal `json:"management_fee_percent"`
	MaxAmortizationYears int             `json:"max_amortization_years"`
}

// Thresholds returns the defaults as sizing limits.
func (d ProtocolDefaults) Thresholds() models.Thresholds {
	return models.Thresholds{
		MinDSCR:              d.MinDSCR,
		MaxLTVPercent:        d.MaxLTVPercent,
		MaxAmortizationYears: d.MaxAmortizationYears,
	}
}

// DefaultsProvider resolves protocol defaults for a property type.
type DefaultsProvider interface {
	Defaults(propertyType models.PropertyType) ProtocolDefaults
}

func protocol(occupancy, opex, dscr, ltv, fee string, amortization int) ProtocolDefaults {
	return ProtocolDefaults{
		OccupancyPercent:     decimal.RequireFromString(occupancy),
		OpExRatioPercent:     decimal.RequireFromString(opex),
		MinDSCR:              decimal.RequireFromString(dscr),
		MaxLTVPercent:        decimal.RequireFromString(ltv),
		ManagementFeePercent: decimal.RequireFromString(fee),
		MaxAmortizationYears: amortization,
	}
}

var standardProtocol = map[models.PropertyType]ProtocolDefaults{
	models.PropertyTypeMultifamily:         protocol("95", "54.35", "1.25", "75", "4", 30),
	models.PropertyTypeAffordable:          protocol("97", "50", "1.20", "80", "5", 35),
	models.PropertyTypeSeniorsHousing:      protocol("90", "65", "1.40", "70", "5", 30),
	models.PropertyTypeStudentHousing:      protocol("92", "55", "1.30", "70", "4", 30),
	models.PropertyTypeManufacturedHousing: protocol("95", "40", "1.25", "75", "4", 30),
	models.PropertyTypeCooperative:         protocol("97", "45", "1.55", "55", "3", 30),
	models.PropertyTypeMixedUse:            protocol("92", "50", "1.30", "70", "4", 25),
}

// StandardProtocol is the built-in set of protocol defaults. Unknown property
// types fall back to multifamily.
type StandardProtocol struct{}

// Defaults implements DefaultsProvider.
func (StandardProtocol) Defaults(propertyType models.PropertyType) ProtocolDefaults {
	if d, ok := standardProtocol[propertyType]; ok {
		return d
	}
	return standardProtocol[models.PropertyTypeMultifamily]
}
