// Package compliance certifies a sized deal against one agency product.
package compliance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
)

var (
	ErrUnmappedProduct   = errors.New("product type has no compliance mapping")
	ErrProfileMismatch   = errors.New("profile does not match selected product")
	ErrNothingSelected   = errors.New("no agency product selected")
	ErrIncompleteProfile = errors.New("profile lacks parameters its product tests need")
)

var hundred = decimal.NewFromInt(100)

// Test names as they appear in results.
const (
	TestDSCR              = "DSCR"
	TestLTV               = "LTV"
	TestAmortization      = "Amortization"
	TestLoanAmount        = "Loan Amount"
	TestTerm              = "Loan Term"
	TestBlendedDSCR       = "Blended Seniors DSCR"
	TestCoopActualDSCR    = "Co-op Actual DSCR"
	TestCoopMarketDSCR    = "Co-op Market Rental DSCR"
	TestStressDSCR        = "Stressed Rate DSCR"
	TestGreenAdjustedDSCR = "Green Adjusted DSCR"
	TestIncomeCap         = "Restricted Income Cap"
	TestOccupancyFloor    = "Occupancy Floor"
	TestStudentOccupancy  = "Student Occupancy"
	TestRehabDSCR         = "Rehab Period DSCR"
	TestRehabOccupancy    = "Rehab Period Occupancy"
	TestCombinedDSCR      = "Combined DSCR"
	TestCombinedLTV       = "Combined LTV"
	TestMarketTier        = "Market Tier"
)

// Input is the sized deal the evaluator checks.
type Input struct {
	Product           models.ProductSelection
	Profile           models.ProductProfile
	Loan              models.LoanTerms
	PurchasePrice     decimal.Decimal
	NOI               decimal.Decimal
	AnnualDebtService decimal.Decimal
	DSCR              decimal.Decimal
	OccupancyPercent  decimal.Decimal
	// Deal carries the product-specific underwriting data.
	Deal              *models.CalculationInputs
}

// rule attaches one family of product-specific tests.
type rule int

const (
	ruleBlendedDSCR rule = iota
	ruleIncomeCap
	ruleCooperative
	ruleStress
	ruleGreen
	ruleOccupancyFloor
	ruleStudent
	ruleRehab
	ruleSupplemental
	ruleMarketTier
)

// Evaluator runs core and product tests. It holds no state.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate produces the compliance result for in.Product.
func (e *Evaluator) Evaluate(in Input) (*models.ComplianceResult, error) {
	if !in.Product.IsSelected() {
		return nil, ErrNothingSelected
	}
	if in.Profile.Key != in.Product.Key() {
		return nil, fmt.Errorf("%w: selected %s, profile %s", ErrProfileMismatch, in.Product, in.Profile.Key)
	}
	rules, err := rulesFor(in.Product)
	if err != nil {
		return nil, err
	}

	deal := in.Deal
	if deal == nil {
		deal = &models.CalculationInputs{}
	}
	th := in.Profile.ResolveThresholds(deal.MarketTier)
	ltv := ltvPercent(in.Loan.Amount(), in.PurchasePrice)
	amortization := decimal.NewFromInt(int64(in.Loan.AmortizationYears()))

	result := &models.ComplianceResult{
		Agency:               in.Product.Agency(),
		ProductType:          in.Profile.Key.ProductType,
		ProductName:          in.Profile.Name,
		MinDSCR:              th.MinDSCR,
		MaxLTVPercent:        th.MaxLTVPercent,
		MaxAmortizationYears: th.MaxAmortizationYears,
		DSCRTest:             atLeast(TestDSCR, in.DSCR, th.MinDSCR),
		LTVTest:              atMost(TestLTV, ltv, th.MaxLTVPercent),
		AmortizationTest:     atMost(TestAmortization, amortization, decimal.NewFromInt(int64(th.MaxAmortizationYears))),
	}

	c := &checker{in: in, deal: deal, th: th, ltv: ltv, result: result}
	c.loanAmount()
	c.term()
	c.minimumOccupancy()
	for _, r := range rules {
		c.apply(r)
	}

	result.OverallPass = len(result.FailedTests()) == 0
	return result, nil
}

// CheckProfile verifies that p declares every parameter block the tests of
// its product read. Catalogs call it when they are built so a term sheet gap
// fails loading instead of failing every deal on the product.
func CheckProfile(p models.ProductProfile) error {
	sel, err := models.ParseProductSelection(string(p.Key.Agency), p.Key.ProductType)
	if err != nil {
		return err
	}
	rules, err := rulesFor(sel)
	if err != nil {
		return err
	}

	var absent []string
	for _, r := range rules {
		if block, ok := r.declaredBy(p); !ok {
			absent = append(absent, block)
		}
	}
	if len(absent) > 0 {
		return fmt.Errorf("%w: %s needs %s", ErrIncompleteProfile, p.Key, strings.Join(absent, ", "))
	}
	return nil
}

// declaredBy reports whether p carries the parameters r reads, and the term
// sheet block that holds them.
func (r rule) declaredBy(p models.ProductProfile) (string, bool) {
	switch r {
	case ruleBlendedDSCR:
		return "seniors", p.Seniors != nil
	case ruleIncomeCap:
		return "income_cap", p.IncomeCap != nil
	case ruleCooperative:
		return "cooperative", p.Cooperative != nil
	case ruleStress:
		return "stress_test", p.StressTest != nil
	case ruleGreen:
		return "green", p.Green != nil
	case ruleOccupancyFloor:
		return "lease_up", p.LeaseUp != nil
	case ruleStudent:
		return "student", p.Student != nil
	case ruleRehab:
		return "rehab", p.Rehab != nil
	case ruleSupplemental:
		return "supplemental", p.Supplemental != nil
	case ruleMarketTier:
		return "market_tiers", len(p.MarketTiers) > 0
	default:
		return "", true
	}
}

// rulesFor maps every product type to its product-specific test families.
// Adding a product type without a case here makes Evaluate fail.
func rulesFor(sel models.ProductSelection) ([]rule, error) {
	if p, ok := sel.FannieMae(); ok {
		return fannieMaeRules(p)
	}
	if p, ok := sel.FreddieMac(); ok {
		return freddieMacRules(p)
	}
	return nil, ErrNothingSelected
}

func fannieMaeRules(p models.FannieMaeProduct) ([]rule, error) {
	switch p {
	case models.FannieMaeConventional, models.FannieMaeSmallLoan, models.FannieMaeAffordableHousing,
		models.FannieMaeCreditFacility:
		return nil, nil
	case models.FannieMaeGreenRewards:
		return []rule{ruleGreen}, nil
	case models.FannieMaeSeniorsHousing:
		return []rule{ruleBlendedDSCR, ruleIncomeCap}, nil
	case models.FannieMaeStudentHousing:
		return []rule{ruleStudent}, nil
	case models.FannieMaeManufacturedHousing:
		return []rule{ruleIncomeCap}, nil
	case models.FannieMaeCooperative:
		return []rule{ruleCooperative}, nil
	case models.FannieMaeARM76, models.FannieMaeStructuredARM:
		return []rule{ruleStress}, nil
	case models.FannieMaeSupplemental:
		return []rule{ruleSupplemental}, nil
	case models.FannieMaeNearStabilization:
		return []rule{ruleOccupancyFloor}, nil
	case models.FannieMaeROAR:
		return []rule{ruleRehab}, nil
	default:
		return nil, fmt.Errorf("%w: fannie_mae/%s", ErrUnmappedProduct, p)
	}
}

func freddieMacRules(p models.FreddieMacProduct) ([]rule, error) {
	switch p {
	case models.FreddieMacConventional, models.FreddieMacTargetedAffordable, models.FreddieMacWorkforcePreservation:
		return nil, nil
	case models.FreddieMacSmallBalance:
		return []rule{ruleMarketTier}, nil
	case models.FreddieMacGreenAdvantage:
		return []rule{ruleGreen}, nil
	case models.FreddieMacSeniorsHousing:
		return []rule{ruleBlendedDSCR, ruleIncomeCap}, nil
	case models.FreddieMacStudentHousing:
		return []rule{ruleStudent}, nil
	case models.FreddieMacManufacturedHousing:
		return []rule{ruleIncomeCap}, nil
	case models.FreddieMacCooperative:
		return []rule{ruleCooperative}, nil
	case models.FreddieMacFloatingRate, models.FreddieMacCappedARM:
		return []rule{ruleStress}, nil
	case models.FreddieMacSupplemental:
		return []rule{ruleSupplemental}, nil
	case models.FreddieMacLeaseUp:
		return []rule{ruleOccupancyFloor}, nil
	case models.FreddieMacValueAdd:
		return []rule{ruleRehab}, nil
	default:
		return nil, fmt.Errorf("%w: freddie_mac/%s", ErrUnmappedProduct, p)
	}
}

func ltvPercent(loan, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return loan.Div(price).Mul(hundred).Round(4)
}

func atLeast(name string, actual, required decimal.Decimal) models.ComplianceTest {
	return models.ComplianceTest{Name: name, Passed: actual.GreaterThanOrEqual(required), Actual: actual, Required: required}
}

func atMost(name string, actual, required decimal.Decimal) models.ComplianceTest {
	return models.ComplianceTest{Name: name, Passed: actual.LessThanOrEqual(required), Actual: actual, Required: required}
}

// missing is a failing test for data the product needs but the deal lacks.
func missing(name string, required decimal.Decimal, note string) *models.ComplianceTest {
	return &models.ComplianceTest{Name: name, Passed: false, Actual: decimal.Zero, Required: required, Note: note}
}

func ptr(t models.ComplianceTest) *models.ComplianceTest {
	return &t
}
