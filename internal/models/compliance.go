package models

import (
	"github.com/shopspring/decimal"
)

// ComplianceTest is a single pass/fail check of an actual value against a
// required threshold.
type ComplianceTest struct {
	Name     string          `json:"name"`
	Passed   bool            `json:"passed"`
	Actual   decimal.Decimal `json:"actual"`
	Required decimal.Decimal `json:"required"`
	Note     string          `json:"note,omitempty"`
}

// ComplianceResult is the certification of a deal against one agency product.
// The DSCR, LTV and amortization tests are always present; the remaining tests
// are attached only for products that require them.
type ComplianceResult struct {
	Agency      Agency `json:"agency"`
	ProductType string `json:"product_type"`
	ProductName string `json:"product_name"`
	OverallPass bool   `json:"overall_pass"`

	MinDSCR              decimal.Decimal `json:"min_dscr"`
	MaxLTVPercent        decimal.Decimal `json:"max_ltv_percent"`
	MaxAmortizationYears int             `json:"max_amortization_years"`

	DSCRTest         ComplianceTest `json:"dscr_test"`
	LTVTest          ComplianceTest `json:"ltv_test"`
	AmortizationTest ComplianceTest `json:"amortization_test"`

	LoanAmountTest        *ComplianceTest `json:"loan_amount_test,omitempty"`
	TermTest              *ComplianceTest `json:"term_test,omitempty"`
	BlendedDSCRTest       *ComplianceTest `json:"blended_dscr_test,omitempty"`
	CoopActualDSCRTest    *ComplianceTest `json:"coop_actual_dscr_test,omitempty"`
	CoopMarketDSCRTest    *ComplianceTest `json:"coop_market_dscr_test,omitempty"`
	StressDSCRTest        *ComplianceTest `json:"stress_dscr_test,omitempty"`
	GreenAdjustedDSCRTest *ComplianceTest `json:"green_adjusted_dscr_test,omitempty"`
	IncomeCapTest         *ComplianceTest `json:"income_cap_test,omitempty"`
	OccupancyFloorTest    *ComplianceTest `json:"occupancy_floor_test,omitempty"`
	StudentOccupancyTest  *ComplianceTest `json:"student_occupancy_test,omitempty"`
	RehabDSCRTest         *ComplianceTest `json:"rehab_dscr_test,omitempty"`
	RehabOccupancyTest    *ComplianceTest `json:"rehab_occupancy_test,omitempty"`
	CombinedDSCRTest      *ComplianceTest `json:"combined_dscr_test,omitempty"`
	CombinedLTVTest       *ComplianceTest `json:"combined_ltv_test,omitempty"`
	MarketTierTest        *ComplianceTest `json:"market_tier_test,omitempty"`
}

// OptionalTests returns the product-specific tests that are present, in a fixed order.
func (r *ComplianceResult) OptionalTests() []ComplianceTest {
	candidates := []*ComplianceTest{
		r.LoanAmountTest,
		r.TermTest,
		r.BlendedDSCRTest,
		r.CoopActualDSCRTest,
		r.CoopMarketDSCRTest,
		r.StressDSCRTest,
		r.GreenAdjustedDSCRTest,
		r.IncomeCapTest,
		r.OccupancyFloorTest,
		r.StudentOccupancyTest,
		r.RehabDSCRTest,
		r.RehabOccupancyTest,
		r.CombinedDSCRTest,
		r.CombinedLTVTest,
		r.MarketTierTest,
	}

	tests := make([]ComplianceTest, 0, len(candidates))
	for _, t := range candidates {
		if t != nil {
			tests = append(tests, *t)
		}
	}
	return tests
}

// Tests returns the core tests followed by every present optional test.
func (r *ComplianceResult) Tests() []ComplianceTest {
	tests := []ComplianceTest{r.DSCRTest, r.LTVTest, r.AmortizationTest}
	return append(tests, r.OptionalTests()...)
}

// FailedTests returns the names of every failing test.
func (r *ComplianceResult) FailedTests() []string {
	var failed []string
	for _, t := range r.Tests() {
		if !t.Passed {
			failed = append(failed, t.Name)
		}
	}
	return failed
}
