package models

import (
	"github.com/shopspring/decimal"
)

// ConstrainingTest names the sizing constraint that bound the loan.
type ConstrainingTest string

const (
	ConstrainingLTV  ConstrainingTest = "LTV"
	ConstrainingDSCR ConstrainingTest = "DSCR"
)

// ThresholdSource records where sizing thresholds came from.
type ThresholdSource string

const (
	ThresholdSourceAgency          ThresholdSource = "agency"
	ThresholdSourceProtocolDefault ThresholdSource = "protocol_default"
)

// OperatingStatement is the stabilized annual income statement of a deal.
type OperatingStatement struct {
	GrossPotentialRent   decimal.Decimal `json:"gross_potential_rent"`
	VacancyLoss          decimal.Decimal `json:"vacancy_loss"`
	NetRentalIncome      decimal.Decimal `json:"net_rental_income"`
	OtherIncome          decimal.Decimal `json:"other_income"`
	EffectiveGrossIncome decimal.Decimal `json:"effective_gross_income"`
	OperatingExpenses    decimal.Decimal `json:"operating_expenses"`
	NetOperatingIncome   decimal.Decimal `json:"net_operating_income"`
	NOIMargin            decimal.Decimal `json:"noi_margin"`
	NOIPerUnit           decimal.Decimal `json:"noi_per_unit"`
	ExpenseRatioPercent  decimal.Decimal `json:"expense_ratio_percent"`
	OccupancyPercent     decimal.Decimal `json:"occupancy_percent"`
}

// LoanSizing is the outcome of the dual-constraint debt sizing. It is
// informational: MaxLoan is the most the product would lend, but the loan
// that is projected and tested is always the requested one.
type LoanSizing struct {
	LTVBasedLoan     decimal.Decimal  `json:"ltv_based_loan"`
	DSCRBasedLoan    decimal.Decimal  `json:"dscr_based_loan"`
	MaxLoan          decimal.Decimal  `json:"max_loan"`
	ConstrainingTest ConstrainingTest `json:"constraining_test"`
	MaxLTVPercent    decimal.Decimal  `json:"max_ltv_percent"`
	MinDSCR          decimal.Decimal  `json:"min_dscr"`
}

// CashFlowYear is one projected hold year. Years start at 1.
type CashFlowYear struct {
	Year                 int             `json:"year"`
	EffectiveGrossIncome decimal.Decimal `json:"effective_gross_income"`
	OperatingExpenses    decimal.Decimal `json:"operating_expenses"`
	NetOperatingIncome   decimal.Decimal `json:"net_operating_income"`
	DebtService          decimal.Decimal `json:"debt_service"`
	CashFlow             decimal.Decimal `json:"cash_flow"`
	CashOnCashPercent    decimal.Decimal `json:"cash_on_cash_percent"`
}

// ExitAnalysis values the sale at the end of the hold period.
type ExitAnalysis struct {
	ExitCapRatePercent decimal.Decimal `json:"exit_cap_rate_percent"`
	ExitYearNOI        decimal.Decimal `json:"exit_year_noi"`
	ExitValue          decimal.Decimal `json:"exit_value"`
	LoanBalance        decimal.Decimal `json:"loan_balance"`
	DispositionCosts   decimal.Decimal `json:"disposition_costs"`
	NetSaleProceeds    decimal.Decimal `json:"net_sale_proceeds"`
}

// ReturnsAnalysis summarizes investor returns over the hold. IRR is nil when
// the solver could not find a rate; IRRError then says why.
type ReturnsAnalysis struct {
	EquityInvested           decimal.Decimal  `json:"equity_invested"`
	IRRPercent               *decimal.Decimal `json:"irr_percent"`
	IRRError                 string           `json:"irr_error,omitempty"`
	EquityMultiple           decimal.Decimal  `json:"equity_multiple"`
	AverageCashOnCashPercent decimal.Decimal  `json:"average_cash_on_cash_percent"`
	TotalProfit              decimal.Decimal  `json:"total_profit"`
}

// CalculationResult is the full output of one underwriting run. At most one
// of FannieMae and FreddieMac is set.
//
// Loan is the requested loan, purchase price times the input LTV. Debt
// service, DSCR, the cash flows, the exit and the compliance results are
// all computed on it, so they can disagree with Sizing.MaxLoan.
type CalculationResult struct {
	Product           ProductSelection   `json:"product"`
	ThresholdSource   ThresholdSource    `json:"threshold_source"`
	Operating         OperatingStatement `json:"operating"`
	Sizing            LoanSizing         `json:"sizing"`
	Loan              LoanTerms          `json:"loan"`
	AnnualDebtService decimal.Decimal    `json:"annual_debt_service"`
	DSCR              decimal.Decimal    `json:"dscr"`
	CashFlows         []CashFlowYear     `json:"cash_flows"`
	Exit              ExitAnalysis       `json:"exit"`
	Returns           ReturnsAnalysis    `json:"returns"`
	FannieMae         *ComplianceResult  `json:"fannie_mae,omitempty"`
	FreddieMac        *ComplianceResult  `json:"freddie_mac,omitempty"`
}

// NOI returns the underwritten net operating income.
func (r *CalculationResult) NOI() decimal.Decimal {
	return r.Operating.NetOperatingIncome
}

// Compliance returns whichever agency result was produced, or nil.
func (r *CalculationResult) Compliance() *ComplianceResult {
	if r.FannieMae != nil {
		return r.FannieMae
	}
	return r.FreddieMac
}
