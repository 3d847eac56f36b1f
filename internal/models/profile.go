package models

import (
	"github.com/shopspring/decimal"
)

// ProductProfile holds the published underwriting parameters of one agency
// product. Profiles are built once by the catalog and never mutated.
type ProductProfile struct {
	Key                  ProductKey       `json:"key"`
	Name                 string           `json:"name"`
	MaxLTVPercent        decimal.Decimal  `json:"max_ltv_percent"`
	MinDSCR              decimal.Decimal  `json:"min_dscr"`
	MaxAmortizationYears int              `json:"max_amortization_years"`
	MinLoanAmount        decimal.Decimal  `json:"min_loan_amount"`
	MaxLoanAmount        *decimal.Decimal `json:"max_loan_amount,omitempty"`
	MinOccupancyPercent  decimal.Decimal  `json:"min_occupancy_percent"`
	VacancyFloorPercent  decimal.Decimal  `json:"vacancy_floor_percent"`
	MinTermYears         int              `json:"min_term_years"`
	MaxTermYears         int              `json:"max_term_years"`
	FixedRate            bool             `json:"fixed_rate"`
	AdjustableRate       bool             `json:"adjustable_rate"`
	InterestOnlyAllowed  bool             `json:"interest_only_allowed"`

	Seniors      *SeniorsParams                    `json:"seniors,omitempty"`
	Cooperative  *CooperativeParams                `json:"cooperative,omitempty"`
	Green        *GreenParams                      `json:"green,omitempty"`
	Rehab        *RehabParams                      `json:"rehab,omitempty"`
	IncomeCap    *IncomeCapParams                  `json:"income_cap,omitempty"`
	StressTest   *StressParams                     `json:"stress_test,omitempty"`
	Supplemental *SupplementalParams               `json:"supplemental,omitempty"`
	LeaseUp      *LeaseUpParams                    `json:"lease_up,omitempty"`
	Student      *StudentParams                    `json:"student,omitempty"`
	MarketTiers  map[MarketTier]MarketTierOverride `json:"market_tiers,omitempty"`
}

// SeniorsParams are per-care-level DSCR floors blended by unit mix.
type SeniorsParams struct {
	IndependentLivingDSCR decimal.Decimal `json:"independent_living_dscr"`
	AssistedLivingDSCR    decimal.Decimal `json:"assisted_living_dscr"`
	MemoryCareDSCR        decimal.Decimal `json:"memory_care_dscr"`
}

// CooperativeParams are the two DSCR floors applied to co-op loans.
type CooperativeParams struct {
	ActualMinDSCR decimal.Decimal `json:"actual_min_dscr"`
	MarketMinDSCR decimal.Decimal `json:"market_min_dscr"`
}

// GreenParams set how much projected utility savings may be added to NCF.
type GreenParams struct {
	OwnerSavingsPercent  decimal.Decimal `json:"owner_savings_percent"`
	TenantSavingsPercent decimal.Decimal `json:"tenant_savings_percent"`
}

// RehabParams are the floors that apply during the renovation period.
type RehabParams struct {
	MinDSCR             decimal.Decimal `json:"min_dscr"`
	MinOccupancyPercent decimal.Decimal `json:"min_occupancy_percent"`
}

// IncomeCapKind names the income stream an income cap restricts.
type IncomeCapKind string

const (
	IncomeCapSkilledNursing IncomeCapKind = "skilled_nursing"
	IncomeCapParkOwnedHomes IncomeCapKind = "park_owned_homes"
)

// IncomeCapParams cap the share of NOI a restricted income stream may provide.
type IncomeCapParams struct {
	Kind          IncomeCapKind   `json:"kind"`
	MaxNOIPercent decimal.Decimal `json:"max_noi_percent"`
}

// StressParams describe the rate shock applied to adjustable products.
type StressParams struct {
	RateAddPercent decimal.Decimal `json:"rate_add_percent"`
	MinDSCR        decimal.Decimal `json:"min_dscr"`
}

// SupplementalParams are the combined first-plus-supplemental limits.
type SupplementalParams struct {
	CombinedMinDSCR       decimal.Decimal `json:"combined_min_dscr"`
	CombinedMaxLTVPercent decimal.Decimal `json:"combined_max_ltv_percent"`
}

// LeaseUpParams hold the physical occupancy a lease-up deal must reach.
type LeaseUpParams struct {
	MinOccupancyPercent decimal.Decimal `json:"min_occupancy_percent"`
}

// StudentParams hold the minimum share of units leased to students.
type StudentParams struct {
	MinStudentOccupancyPercent decimal.Decimal `json:"min_student_occupancy_percent"`
}

// MarketTierOverride replaces the base LTV and DSCR for a small balance market tier.
type MarketTierOverride struct {
	MaxLTVPercent decimal.Decimal `json:"max_ltv_percent"`
	MinDSCR       decimal.Decimal `json:"min_dscr"`
}

// Thresholds are the three limits the core compliance tests are run against.
type Thresholds struct {
	MinDSCR              decimal.Decimal `json:"min_dscr"`
	MaxLTVPercent        decimal.Decimal `json:"max_ltv_percent"`
	MaxAmortizationYears int             `json:"max_amortization_years"`
}

// ResolveThresholds returns the profile limits, applying a market-tier
// override when the profile declares one for the tier.
func (p *ProductProfile) ResolveThresholds(tier MarketTier) Thresholds {
	t := Thresholds{
		MinDSCR:              p.MinDSCR,
		MaxLTVPercent:        p.MaxLTVPercent,
		MaxAmortizationYears: p.MaxAmortizationYears,
	}
	if override, ok := p.MarketTiers[tier]; ok {
		t.MinDSCR = override.MinDSCR
		t.MaxLTVPercent = override.MaxLTVPercent
	}
	return t
}

// EffectiveOccupancy caps occupancy at 100 minus the profile vacancy floor.
func (p *ProductProfile) EffectiveOccupancy(occupancyPercent decimal.Decimal) decimal.Decimal {
	if !p.VacancyFloorPercent.IsPositive() {
		return occupancyPercent
	}
	ceiling := hundred.Sub(p.VacancyFloorPercent)
	return decimal.Min(occupancyPercent, ceiling)
}
