package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculationInputs holds everything needed for one underwriting run.
// Percent fields are expressed as 0-100; RentPerUnit is monthly.
type CalculationInputs struct {
	DealName     string       `json:"deal_name,omitempty"`
	PropertyType PropertyType `json:"property_type,omitempty"`

	// Income
	RentPerUnit        decimal.Decimal  `json:"rent_per_unit"`
	UnitCount          int              `json:"unit_count"`
	OccupancyPercent   *decimal.Decimal `json:"occupancy_percent,omitempty"`
	ActualOtherIncome  *decimal.Decimal `json:"actual_other_income,omitempty"`
	OtherIncomePercent *decimal.Decimal `json:"other_income_percent,omitempty"`

	// Expenses
	ActualOperatingExpenses *decimal.Decimal `json:"actual_operating_expenses,omitempty"`
	ExpenseLines            *ExpenseLines    `json:"expense_lines,omitempty"`
	OpExRatioPercent        *decimal.Decimal `json:"opex_ratio_percent,omitempty"`

	// Acquisition and debt
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	ClosingCosts      decimal.Decimal `json:"closing_costs"`
	LTVPercent        decimal.Decimal `json:"ltv_percent"`
	InterestRate      decimal.Decimal `json:"interest_rate_percent"`
	InterestOnly      bool            `json:"interest_only"`
	AmortizationYears int             `json:"amortization_years"`
	TermYears         int             `json:"term_years"`

	// Hold and exit
	HoldPeriodYears        int               `json:"hold_period_years"`
	MarketCapRatePercent   decimal.Decimal   `json:"market_cap_rate_percent"`
	GrowthRatesPercent     []decimal.Decimal `json:"growth_rates_percent"`
	DispositionCostPercent decimal.Decimal   `json:"disposition_cost_percent"`

	Product ProductSelection `json:"product"`

	// Product-specific underwriting data. Each is consulted only by the
	// products whose compliance tests need it.
	MarketTier                  MarketTier        `json:"market_tier,omitempty"`
	SeniorsUnitMix              *SeniorsUnitMix   `json:"seniors_unit_mix,omitempty"`
	CooperativeActualNOI        *decimal.Decimal  `json:"cooperative_actual_noi,omitempty"`
	GreenSavings                *GreenSavings     `json:"green_savings,omitempty"`
	RestrictedNOI               *decimal.Decimal  `json:"restricted_noi,omitempty"`
	StudentOccupancyPercent     *decimal.Decimal  `json:"student_occupancy_percent,omitempty"`
	RehabPeriodNOI              *decimal.Decimal  `json:"rehab_period_noi,omitempty"`
	RehabPeriodOccupancyPercent *decimal.Decimal  `json:"rehab_period_occupancy_percent,omitempty"`
	ExistingFirstLien           *SupplementalLien `json:"existing_first_lien,omitempty"`
}

// LoanTerms builds the proposed loan from purchase price and requested LTV.
func (in *CalculationInputs) LoanTerms() (LoanTerms, error) {
	return LoanTermsFromPurchasePrice(in.PurchasePrice, in.LTVPercent, in.InterestRate, in.InterestOnly, in.AmortizationYears, in.TermYears)
}

// ExpenseLines is an itemized annual operating budget. Omitted lines count as zero.
type ExpenseLines struct {
	RealEstateTaxes       *decimal.Decimal `json:"real_estate_taxes,omitempty"`
	Insurance             *decimal.Decimal `json:"insurance,omitempty"`
	Utilities             *decimal.Decimal `json:"utilities,omitempty"`
	RepairsMaintenance    *decimal.Decimal `json:"repairs_maintenance,omitempty"`
	Payroll               *decimal.Decimal `json:"payroll,omitempty"`
	GeneralAdministrative *decimal.Decimal `json:"general_administrative,omitempty"`
	Marketing             *decimal.Decimal `json:"marketing,omitempty"`
	ContractServices      *decimal.Decimal `json:"contract_services,omitempty"`
	ReplacementReserves   *decimal.Decimal `json:"replacement_reserves,omitempty"`
	Other                 *decimal.Decimal `json:"other,omitempty"`
	ManagementFeePercent  *decimal.Decimal `json:"management_fee_percent,omitempty"`
}

// Items returns the fixed-amount lines in a stable order.
func (e *ExpenseLines) Items() []*decimal.Decimal {
	return []*decimal.Decimal{
		e.RealEstateTaxes,
		e.Insurance,
		e.Utilities,
		e.RepairsMaintenance,
		e.Payroll,
		e.GeneralAdministrative,
		e.Marketing,
		e.ContractServices,
		e.ReplacementReserves,
		e.Other,
	}
}

// Validate rejects negative lines and out-of-range fee percentages.
func (e *ExpenseLines) Validate() error {
	for _, item := range e.Items() {
		if item != nil && item.IsNegative() {
			return fmt.Errorf("%w: expense line cannot be negative", ErrInvalidInputs)
		}
	}
	if e.ManagementFeePercent != nil {
		if err := validatePercent(*e.ManagementFeePercent, ErrInvalidInputs); err != nil {
			return err
		}
	}
	return nil
}

// SeniorsUnitMix splits a seniors housing property by level of care.
type SeniorsUnitMix struct {
	IndependentLivingUnits int `json:"independent_living_units"`
	AssistedLivingUnits    int `json:"assisted_living_units"`
	MemoryCareUnits        int `json:"memory_care_units"`
}

// Total returns the number of units across all care levels.
func (m SeniorsUnitMix) Total() int {
	return m.IndependentLivingUnits + m.AssistedLivingUnits + m.MemoryCareUnits
}

// GreenSavings holds projected annual utility savings from green improvements.
type GreenSavings struct {
	OwnerSavings  decimal.Decimal `json:"owner_savings"`
	TenantSavings decimal.Decimal `json:"tenant_savings"`
}

// SupplementalLien describes the senior loan a supplemental loan sits behind.
type SupplementalLien struct {
	Balance           decimal.Decimal `json:"balance"`
	AnnualDebtService decimal.Decimal `json:"annual_debt_service"`
}
