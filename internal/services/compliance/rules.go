package compliance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/sizing"
)

// checker accumulates optional tests onto one result.
type checker struct {
	in     Input
	deal   *models.CalculationInputs
	th     models.Thresholds
	ltv    decimal.Decimal
	result *models.ComplianceResult
}

func (c *checker) apply(r rule) {
	switch r {
	case ruleBlendedDSCR:
		c.blendedDSCR()
	case ruleIncomeCap:
		c.incomeCap()
	case ruleCooperative:
		c.cooperative()
	case ruleStress:
		c.stress()
	case ruleGreen:
		c.green()
	case ruleOccupancyFloor:
		c.occupancyFloor()
	case ruleStudent:
		c.studentOccupancy()
	case ruleRehab:
		c.rehab()
	case ruleSupplemental:
		c.supplemental()
	case ruleMarketTier:
		c.marketTier()
	}
}

func (c *checker) loanAmount() {
	p := c.in.Profile
	if !p.MinLoanAmount.IsPositive() && p.MaxLoanAmount == nil {
		return
	}
	amount := c.in.Loan.Amount()
	t := atLeast(TestLoanAmount, amount, p.MinLoanAmount)
	if p.MaxLoanAmount != nil {
		t.Passed = t.Passed && amount.LessThanOrEqual(*p.MaxLoanAmount)
		t.Note = fmt.Sprintf("loan amount must be between %s and %s", p.MinLoanAmount.StringFixed(0), p.MaxLoanAmount.StringFixed(0))
	}
	c.result.LoanAmountTest = &t
}

func (c *checker) term() {
	p := c.in.Profile
	if p.MinTermYears == 0 && p.MaxTermYears == 0 {
		return
	}
	years := c.in.Loan.TermYears()
	t := atLeast(TestTerm, decimal.NewFromInt(int64(years)), decimal.NewFromInt(int64(p.MinTermYears)))
	if p.MaxTermYears > 0 {
		t.Passed = t.Passed && years <= p.MaxTermYears
		t.Note = fmt.Sprintf("term must be between %d and %d years", p.MinTermYears, p.MaxTermYears)
	}
	c.result.TermTest = &t
}

// minimumOccupancy applies a profile-wide occupancy floor. Lease-up products
// replace it with their own floor.
func (c *checker) minimumOccupancy() {
	if !c.in.Profile.MinOccupancyPercent.IsPositive() {
		return
	}
	c.result.OccupancyFloorTest = ptr(atLeast(TestOccupancyFloor, c.in.OccupancyPercent, c.in.Profile.MinOccupancyPercent))
}

func (c *checker) occupancyFloor() {
	params := c.in.Profile.LeaseUp
	if params == nil {
		c.result.OccupancyFloorTest = missing(TestOccupancyFloor, decimal.Zero, "profile declares no lease-up occupancy floor")
		return
	}
	c.result.OccupancyFloorTest = ptr(atLeast(TestOccupancyFloor, c.in.OccupancyPercent, params.MinOccupancyPercent))
}

// blendedDSCR weights the per-care-level DSCR floors by unit mix.
func (c *checker) blendedDSCR() {
	params := c.in.Profile.Seniors
	if params == nil {
		c.result.BlendedDSCRTest = missing(TestBlendedDSCR, decimal.Zero, "profile declares no seniors DSCR floors")
		return
	}
	mix := c.deal.SeniorsUnitMix
	if mix == nil || mix.Total() <= 0 {
		c.result.BlendedDSCRTest = missing(TestBlendedDSCR, params.IndependentLivingDSCR, "seniors unit mix is required")
		return
	}

	weighted := params.IndependentLivingDSCR.Mul(decimal.NewFromInt(int64(mix.IndependentLivingUnits))).
		Add(params.AssistedLivingDSCR.Mul(decimal.NewFromInt(int64(mix.AssistedLivingUnits)))).
		Add(params.MemoryCareDSCR.Mul(decimal.NewFromInt(int64(mix.MemoryCareUnits))))
	required := weighted.Div(decimal.NewFromInt(int64(mix.Total()))).Round(4)

	c.result.BlendedDSCRTest = ptr(atLeast(TestBlendedDSCR, c.in.DSCR, required))
}

// incomeCap limits the share of NOI from skilled nursing or park-owned homes.
func (c *checker) incomeCap() {
	params := c.in.Profile.IncomeCap
	if params == nil {
		c.result.IncomeCapTest = missing(TestIncomeCap, decimal.Zero, "profile declares no income cap")
		return
	}
	restricted := c.deal.RestrictedNOI
	if restricted == nil {
		note := fmt.Sprintf("%s NOI is required; report 0 when there is none", params.Kind)
		c.result.IncomeCapTest = missing(TestIncomeCap, params.MaxNOIPercent, note)
		return
	}
	if !c.in.NOI.IsPositive() {
		c.result.IncomeCapTest = missing(TestIncomeCap, params.MaxNOIPercent, "NOI must be positive to measure the restricted income share")
		return
	}

	share := restricted.Div(c.in.NOI).Mul(hundred).Round(4)
	t := atMost(TestIncomeCap, share, params.MaxNOIPercent)
	t.Note = string(params.Kind)
	c.result.IncomeCapTest = &t
}

// cooperative checks coverage on actual co-op income and on market rents.
func (c *checker) cooperative() {
	params := c.in.Profile.Cooperative
	if params == nil {
		c.result.CoopActualDSCRTest = missing(TestCoopActualDSCR, decimal.Zero, "profile declares no co-op DSCR floors")
		c.result.CoopMarketDSCRTest = missing(TestCoopMarketDSCR, decimal.Zero, "profile declares no co-op DSCR floors")
		return
	}

	c.result.CoopMarketDSCRTest = ptr(atLeast(TestCoopMarketDSCR, c.in.DSCR, params.MarketMinDSCR))

	actualNOI := c.deal.CooperativeActualNOI
	if actualNOI == nil {
		c.result.CoopActualDSCRTest = missing(TestCoopActualDSCR, params.ActualMinDSCR, "co-op actual NOI is required")
		return
	}
	c.result.CoopActualDSCRTest = ptr(atLeast(TestCoopActualDSCR, sizing.DSCR(*actualNOI, c.in.AnnualDebtService), params.ActualMinDSCR))
}

// stress re-prices the loan at the note rate plus the profile add-on and
// amortizes it over the full schedule.
func (c *checker) stress() {
	params := c.in.Profile.StressTest
	if params == nil {
		c.result.StressDSCRTest = missing(TestStressDSCR, decimal.Zero, "profile declares no stress test")
		return
	}

	loan := c.in.Loan
	stressedRate := loan.RatePercent().Add(params.RateAddPercent)
	ds := sizing.DebtServiceAt(loan.Amount(), stressedRate, loan.AmortizationYears(), false)

	t := atLeast(TestStressDSCR, sizing.DSCR(c.in.NOI, ds).Round(4), params.MinDSCR)
	t.Note = fmt.Sprintf("stressed at %s%%", stressedRate.String())
	c.result.StressDSCRTest = &t
}

// green adds the eligible share of projected utility savings to NOI.
func (c *checker) green() {
	params := c.in.Profile.Green
	if params == nil {
		c.result.GreenAdjustedDSCRTest = missing(TestGreenAdjustedDSCR, decimal.Zero, "profile declares no green adjustment")
		return
	}
	savings := c.deal.GreenSavings
	if savings == nil {
		c.result.GreenAdjustedDSCRTest = missing(TestGreenAdjustedDSCR, c.th.MinDSCR, "projected green savings are required")
		return
	}

	adjusted := c.in.NOI.
		Add(savings.OwnerSavings.Mul(params.OwnerSavingsPercent).Div(hundred)).
		Add(savings.TenantSavings.Mul(params.TenantSavingsPercent).Div(hundred))
	c.result.GreenAdjustedDSCRTest = ptr(atLeast(TestGreenAdjustedDSCR, sizing.DSCR(adjusted, c.in.AnnualDebtService).Round(4), c.th.MinDSCR))
}

func (c *checker) studentOccupancy() {
	params := c.in.Profile.Student
	if params == nil {
		c.result.StudentOccupancyTest = missing(TestStudentOccupancy, decimal.Zero, "profile declares no student occupancy floor")
		return
	}
	actual := c.deal.StudentOccupancyPercent
	if actual == nil {
		c.result.StudentOccupancyTest = missing(TestStudentOccupancy, params.MinStudentOccupancyPercent, "student occupancy is required")
		return
	}
	c.result.StudentOccupancyTest = ptr(atLeast(TestStudentOccupancy, *actual, params.MinStudentOccupancyPercent))
}

func (c *checker) rehab() {
	params := c.in.Profile.Rehab
	if params == nil {
		c.result.RehabDSCRTest = missing(TestRehabDSCR, decimal.Zero, "profile declares no rehab floors")
		c.result.RehabOccupancyTest = missing(TestRehabOccupancy, decimal.Zero, "profile declares no rehab floors")
		return
	}

	if noi := c.deal.RehabPeriodNOI; noi != nil {
		c.result.RehabDSCRTest = ptr(atLeast(TestRehabDSCR, sizing.DSCR(*noi, c.in.AnnualDebtService).Round(4), params.MinDSCR))
	} else {
		c.result.RehabDSCRTest = missing(TestRehabDSCR, params.MinDSCR, "rehab period NOI is required")
	}

	if occ := c.deal.RehabPeriodOccupancyPercent; occ != nil {
		c.result.RehabOccupancyTest = ptr(atLeast(TestRehabOccupancy, *occ, params.MinOccupancyPercent))
	} else {
		c.result.RehabOccupancyTest = missing(TestRehabOccupancy, params.MinOccupancyPercent, "rehab period occupancy is required")
	}
}

// supplemental tests the new loan together with the existing first lien.
func (c *checker) supplemental() {
	params := c.in.Profile.Supplemental
	if params == nil {
		c.result.CombinedDSCRTest = missing(TestCombinedDSCR, decimal.Zero, "profile declares no combined limits")
		c.result.CombinedLTVTest = missing(TestCombinedLTV, decimal.Zero, "profile declares no combined limits")
		return
	}
	lien := c.deal.ExistingFirstLien
	if lien == nil {
		c.result.CombinedDSCRTest = missing(TestCombinedDSCR, params.CombinedMinDSCR, "existing first lien is required")
		c.result.CombinedLTVTest = missing(TestCombinedLTV, params.CombinedMaxLTVPercent, "existing first lien is required")
		return
	}

	combinedDS := c.in.AnnualDebtService.Add(lien.AnnualDebtService)
	combinedLoan := c.in.Loan.Amount().Add(lien.Balance)
	c.result.CombinedDSCRTest = ptr(atLeast(TestCombinedDSCR, sizing.DSCR(c.in.NOI, combinedDS).Round(4), params.CombinedMinDSCR))
	c.result.CombinedLTVTest = ptr(atMost(TestCombinedLTV, ltvPercent(combinedLoan, c.in.PurchasePrice), params.CombinedMaxLTVPercent))
}

// marketTier checks the deal against the limits of its declared market tier.
func (c *checker) marketTier() {
	tier := c.deal.MarketTier
	if tier == "" {
		c.result.MarketTierTest = missing(TestMarketTier, c.in.Profile.MinDSCR, "market tier is required")
		return
	}
	override, ok := c.in.Profile.MarketTiers[tier]
	if !ok {
		c.result.MarketTierTest = missing(TestMarketTier, c.in.Profile.MinDSCR, fmt.Sprintf("no limits published for market tier %s", tier))
		return
	}

	t := atLeast(TestMarketTier, c.in.DSCR, override.MinDSCR)
	t.Passed = t.Passed && c.ltv.LessThanOrEqual(override.MaxLTVPercent)
	t.Note = fmt.Sprintf("%s tier: max LTV %s%%", tier, override.MaxLTVPercent.String())
	c.result.MarketTierTest = &t
}
