package compliance_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/compliance"
	"underwriting-engine/internal/services/sizing"
)

var testCatalog = catalog.MustLoadEmbedded()

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// input builds a $10M purchase financed at the given LTV, 6%, 30-year
// amortization and 10-year term.
func input(t *testing.T, sel models.ProductSelection, ltv, noi string, deal *models.CalculationInputs) compliance.Input {
	t.Helper()
	profile, err := testCatalog.Lookup(sel.Key())
	require.NoError(t, err)

	loan, err := models.LoanTermsFromPurchasePrice(d("10000000"), d(ltv), d("6"), false, 30, 10)
	require.NoError(t, err)
	ds := sizing.AnnualDebtService(loan)

	return compliance.Input{
		Product:           sel,
		Profile:           profile,
		Loan:              loan,
		PurchasePrice:     d("10000000"),
		NOI:               d(noi),
		AnnualDebtService: ds,
		DSCR:              sizing.DSCR(d(noi), ds),
		OccupancyPercent:  d("93"),
		Deal:              deal,
	}
}

func evaluate(t *testing.T, in compliance.Input) *models.ComplianceResult {
	t.Helper()
	result, err := compliance.NewEvaluator().Evaluate(in)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// completeDeal supplies every product-specific figure with passing values.
func completeDeal() *models.CalculationInputs {
	return &models.CalculationInputs{
		MarketTier:                  models.MarketTierStandard,
		SeniorsUnitMix:              &models.SeniorsUnitMix{IndependentLivingUnits: 50, AssistedLivingUnits: 30, MemoryCareUnits: 20},
		CooperativeActualNOI:        dp("700000"),
		GreenSavings:                &models.GreenSavings{OwnerSavings: d("40000"), TenantSavings: d("60000")},
		RestrictedNOI:               dp("0"),
		StudentOccupancyPercent:     dp("90"),
		RehabPeriodNOI:              dp("700000"),
		RehabPeriodOccupancyPercent: dp("85"),
		ExistingFirstLien:           &models.SupplementalLien{Balance: d("1000000"), AnnualDebtService: d("70000")},
	}
}

func TestEvaluate_EveryProductIsMapped(t *testing.T) {
	for _, key := range models.AllProductKeys() {
		t.Run(key.String(), func(t *testing.T) {
			sel, err := models.ParseProductSelection(string(key.Agency), key.ProductType)
			require.NoError(t, err)

			result := evaluate(t, input(t, sel, "50", "900000", completeDeal()))

			assert.Equal(t, key.Agency, result.Agency)
			assert.Equal(t, key.ProductType, result.ProductType)
			assert.Equal(t, compliance.TestDSCR, result.DSCRTest.Name)
			assert.Equal(t, compliance.TestLTV, result.LTVTest.Name)
			assert.Equal(t, compliance.TestAmortization, result.AmortizationTest.Name)

			allPassed := true
			for _, test := range result.Tests() {
				allPassed = allPassed && test.Passed
			}
			assert.Equal(t, allPassed, result.OverallPass)
		})
	}
}

// productTests lists the product-specific tests present on r, in result order.
// Loan amount, term and the profile-wide occupancy floor are left out since
// they follow the term sheet rather than the product type.
func productTests(r *models.ComplianceResult) []string {
	var names []string
	for _, test := range []*models.ComplianceTest{
		r.BlendedDSCRTest,
		r.CoopActualDSCRTest,
		r.CoopMarketDSCRTest,
		r.StressDSCRTest,
		r.GreenAdjustedDSCRTest,
		r.IncomeCapTest,
		r.StudentOccupancyTest,
		r.RehabDSCRTest,
		r.RehabOccupancyTest,
		r.CombinedDSCRTest,
		r.CombinedLTVTest,
		r.MarketTierTest,
	} {
		if test != nil {
			names = append(names, test.Name)
		}
	}
	return names
}

func TestEvaluate_ProductSpecificTests(t *testing.T) {
	var (
		green     = []string{compliance.TestGreenAdjustedDSCR}
		seniors   = []string{compliance.TestBlendedDSCR, compliance.TestIncomeCap}
		student   = []string{compliance.TestStudentOccupancy}
		incomeCap = []string{compliance.TestIncomeCap}
		coop      = []string{compliance.TestCoopActualDSCR, compliance.TestCoopMarketDSCR}
		stress    = []string{compliance.TestStressDSCR}
		combined  = []string{compliance.TestCombinedDSCR, compliance.TestCombinedLTV}
		rehab     = []string{compliance.TestRehabDSCR, compliance.TestRehabOccupancy}
		tier      = []string{compliance.TestMarketTier}
	)
	fannie := func(p models.FannieMaeProduct) models.ProductKey { return models.SelectFannieMae(p).Key() }
	freddie := func(p models.FreddieMacProduct) models.ProductKey { return models.SelectFreddieMac(p).Key() }

	want := map[models.ProductKey][]string{
		fannie(models.FannieMaeConventional):        nil,
		fannie(models.FannieMaeSmallLoan):           nil,
		fannie(models.FannieMaeAffordableHousing):   nil,
		fannie(models.FannieMaeCreditFacility):      nil,
		fannie(models.FannieMaeGreenRewards):        green,
		fannie(models.FannieMaeSeniorsHousing):      seniors,
		fannie(models.FannieMaeStudentHousing):      student,
		fannie(models.FannieMaeManufacturedHousing): incomeCap,
		fannie(models.FannieMaeCooperative):         coop,
		fannie(models.FannieMaeARM76):               stress,
		fannie(models.FannieMaeStructuredARM):       stress,
		fannie(models.FannieMaeSupplemental):        combined,
		fannie(models.FannieMaeNearStabilization):   nil,
		fannie(models.FannieMaeROAR):                rehab,

		freddie(models.FreddieMacConventional):          nil,
		freddie(models.FreddieMacTargetedAffordable):    nil,
		freddie(models.FreddieMacWorkforcePreservation): nil,
		freddie(models.FreddieMacSmallBalance):          tier,
		freddie(models.FreddieMacGreenAdvantage):        green,
		freddie(models.FreddieMacSeniorsHousing):        seniors,
		freddie(models.FreddieMacStudentHousing):        student,
		freddie(models.FreddieMacManufacturedHousing):   incomeCap,
		freddie(models.FreddieMacCooperative):           coop,
		freddie(models.FreddieMacFloatingRate):          stress,
		freddie(models.FreddieMacCappedARM):             stress,
		freddie(models.FreddieMacSupplemental):          combined,
		freddie(models.FreddieMacLeaseUp):               nil,
		freddie(models.FreddieMacValueAdd):              rehab,
	}
	leaseUp := map[models.ProductKey]bool{
		fannie(models.FannieMaeNearStabilization): true,
		freddie(models.FreddieMacLeaseUp):         true,
	}

	for _, key := range models.AllProductKeys() {
		t.Run(key.String(), func(t *testing.T) {
			expected, ok := want[key]
			require.True(t, ok, "no expected tests listed for %s", key)
			sel, err := models.ParseProductSelection(string(key.Agency), key.ProductType)
			require.NoError(t, err)

			in := input(t, sel, "50", "900000", completeDeal())
			result := evaluate(t, in)

			assert.Equal(t, expected, productTests(result))
			if leaseUp[key] {
				require.NotNil(t, result.OccupancyFloorTest)
				assert.True(t, result.OccupancyFloorTest.Required.Equal(in.Profile.LeaseUp.MinOccupancyPercent))
			}
		})
	}
}

func TestEvaluate_GreenAdjustedDSCR(t *testing.T) {
	deal := &models.CalculationInputs{
		GreenSavings: &models.GreenSavings{OwnerSavings: d("40000"), TenantSavings: d("60000")},
	}
	in := input(t, models.SelectFannieMae(models.FannieMaeGreenRewards), "50", "430000", deal)

	result := evaluate(t, in)

	// 430,000 + 75% of 40,000 owner + 25% of 60,000 tenant savings
	want := sizing.DSCR(d("475000"), in.AnnualDebtService).Round(4)
	require.NotNil(t, result.GreenAdjustedDSCRTest)
	assert.True(t, result.GreenAdjustedDSCRTest.Actual.Equal(want), "got %s want %s", result.GreenAdjustedDSCRTest.Actual, want)
	assert.True(t, result.GreenAdjustedDSCRTest.Required.Equal(d("1.25")))
	assert.True(t, result.GreenAdjustedDSCRTest.Passed)
	assert.False(t, result.DSCRTest.Passed, "unadjusted NOI alone falls short")
	assert.False(t, result.OverallPass)

	missingSavings := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacGreenAdvantage), "50", "600000", nil))
	require.NotNil(t, missingSavings.GreenAdjustedDSCRTest)
	assert.False(t, missingSavings.GreenAdjustedDSCRTest.Passed)
	assert.NotEmpty(t, missingSavings.GreenAdjustedDSCRTest.Note)
}

func TestEvaluate_CooperativeDualDSCR(t *testing.T) {
	deal := &models.CalculationInputs{CooperativeActualNOI: dp("340000")}
	in := input(t, models.SelectFreddieMac(models.FreddieMacCooperative), "50", "600000", deal)

	result := evaluate(t, in)

	require.NotNil(t, result.CoopMarketDSCRTest)
	assert.True(t, result.CoopMarketDSCRTest.Actual.Equal(in.DSCR))
	assert.True(t, result.CoopMarketDSCRTest.Required.Equal(d("1.55")))
	assert.True(t, result.CoopMarketDSCRTest.Passed)

	require.NotNil(t, result.CoopActualDSCRTest)
	assert.True(t, result.CoopActualDSCRTest.Actual.Equal(sizing.DSCR(d("340000"), in.AnnualDebtService)))
	assert.True(t, result.CoopActualDSCRTest.Required.Equal(d("1")))
	assert.False(t, result.CoopActualDSCRTest.Passed)
	assert.Equal(t, []string{compliance.TestCoopActualDSCR}, result.FailedTests())

	deal.CooperativeActualNOI = dp("400000")
	passing := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeCooperative), "50", "600000", deal))
	assert.True(t, passing.CoopActualDSCRTest.Passed)
	assert.True(t, passing.OverallPass, "failed: %v", passing.FailedTests())
}

func TestEvaluate_StudentOccupancyFloor(t *testing.T) {
	deal := &models.CalculationInputs{StudentOccupancyPercent: dp("78")}

	fannie := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeStudentHousing), "50", "700000", deal))
	freddie := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacStudentHousing), "50", "700000", deal))

	require.NotNil(t, fannie.StudentOccupancyTest)
	assert.True(t, fannie.StudentOccupancyTest.Actual.Equal(d("78")))
	assert.True(t, fannie.StudentOccupancyTest.Required.Equal(d("80")))
	assert.False(t, fannie.StudentOccupancyTest.Passed)

	require.NotNil(t, freddie.StudentOccupancyTest)
	assert.True(t, freddie.StudentOccupancyTest.Required.Equal(d("75")))
	assert.True(t, freddie.StudentOccupancyTest.Passed)
}

func TestEvaluate_RehabPeriodFloors(t *testing.T) {
	deal := &models.CalculationInputs{
		RehabPeriodNOI:              dp("250000"),
		RehabPeriodOccupancyPercent: dp("55"),
	}

	roarIn := input(t, models.SelectFannieMae(models.FannieMaeROAR), "50", "700000", deal)
	roar := evaluate(t, roarIn)

	require.NotNil(t, roar.RehabDSCRTest)
	assert.True(t, roar.RehabDSCRTest.Actual.Equal(sizing.DSCR(d("250000"), roarIn.AnnualDebtService).Round(4)))
	assert.True(t, roar.RehabDSCRTest.Required.Equal(d("0.75")))
	assert.False(t, roar.RehabDSCRTest.Passed)
	require.NotNil(t, roar.RehabOccupancyTest)
	assert.True(t, roar.RehabOccupancyTest.Required.Equal(d("50")))
	assert.True(t, roar.RehabOccupancyTest.Passed)

	valueAdd := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacValueAdd), "50", "700000", deal))
	assert.True(t, valueAdd.RehabDSCRTest.Required.Equal(d("1.15")))
	assert.True(t, valueAdd.RehabOccupancyTest.Required.Equal(d("80")))
	assert.False(t, valueAdd.RehabOccupancyTest.Passed)

	noData := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacValueAdd), "50", "700000", nil))
	assert.False(t, noData.RehabDSCRTest.Passed)
	assert.Equal(t, "rehab period NOI is required", noData.RehabDSCRTest.Note)
	assert.False(t, noData.RehabOccupancyTest.Passed)
}

func TestEvaluate_UnmappedProduct(t *testing.T) {
	sel := models.SelectFannieMae(models.FannieMaeProduct("bridge"))
	in := compliance.Input{
		Product: sel,
		Profile: models.ProductProfile{Key: sel.Key(), MinDSCR: d("1.25"), MaxLTVPercent: d("80"), MaxAmortizationYears: 30},
	}

	_, err := compliance.NewEvaluator().Evaluate(in)

	assert.ErrorIs(t, err, compliance.ErrUnmappedProduct)
}

func TestEvaluate_RejectsMismatchedProfile(t *testing.T) {
	in := input(t, models.SelectFannieMae(models.FannieMaeConventional), "75", "750000", nil)
	in.Product = models.SelectFreddieMac(models.FreddieMacConventional)

	_, err := compliance.NewEvaluator().Evaluate(in)

	assert.ErrorIs(t, err, compliance.ErrProfileMismatch)
}

func TestEvaluate_RejectsUnselected(t *testing.T) {
	_, err := compliance.NewEvaluator().Evaluate(compliance.Input{Product: models.Unselected()})

	assert.ErrorIs(t, err, compliance.ErrNothingSelected)
}

func TestEvaluate_ConventionalCoreTests(t *testing.T) {
	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeConventional), "75", "750000", nil))

	assert.True(t, result.OverallPass, "failed: %v", result.FailedTests())
	assert.True(t, result.MinDSCR.Equal(d("1.25")))
	assert.True(t, result.LTVTest.Actual.Equal(d("75")))
	assert.True(t, result.AmortizationTest.Actual.Equal(d("30")))
	require.NotNil(t, result.TermTest)
	assert.True(t, result.TermTest.Passed)
	assert.Nil(t, result.LoanAmountTest)
	assert.Nil(t, result.StressDSCRTest)
}

func TestEvaluate_DSCRFailureFailsOverall(t *testing.T) {
	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeConventional), "75", "600000", nil))

	assert.False(t, result.DSCRTest.Passed)
	assert.True(t, result.LTVTest.Passed)
	assert.False(t, result.OverallPass)
	assert.Equal(t, []string{compliance.TestDSCR}, result.FailedTests())
}

func TestEvaluate_SeniorsBlendedDSCR(t *testing.T) {
	deal := completeDeal()

	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeSeniorsHousing), "75", "750000", deal))

	// (1.30*50 + 1.40*30 + 1.45*20) / 100
	require.NotNil(t, result.BlendedDSCRTest)
	assert.True(t, result.BlendedDSCRTest.Required.Equal(d("1.36")), "got %s", result.BlendedDSCRTest.Required)
	assert.True(t, result.BlendedDSCRTest.Passed)
	require.NotNil(t, result.IncomeCapTest)
	assert.Equal(t, string(models.IncomeCapSkilledNursing), result.IncomeCapTest.Note)
}

func TestEvaluate_MissingDataFailsWithNote(t *testing.T) {
	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeSeniorsHousing), "75", "750000", &models.CalculationInputs{}))

	require.NotNil(t, result.BlendedDSCRTest)
	assert.False(t, result.BlendedDSCRTest.Passed)
	assert.NotEmpty(t, result.BlendedDSCRTest.Note)
	require.NotNil(t, result.IncomeCapTest)
	assert.False(t, result.IncomeCapTest.Passed)
	assert.NotEmpty(t, result.IncomeCapTest.Note)
	assert.False(t, result.OverallPass)
}

func TestEvaluate_ManufacturedHousingIncomeCap(t *testing.T) {
	deal := &models.CalculationInputs{RestrictedNOI: dp("225000")}

	result := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacManufacturedHousing), "75", "750000", deal))

	require.NotNil(t, result.IncomeCapTest)
	assert.True(t, result.IncomeCapTest.Actual.Equal(d("30")))
	assert.False(t, result.IncomeCapTest.Passed)
	assert.False(t, result.OverallPass)
}

func TestEvaluate_AdjustableRateStress(t *testing.T) {
	sel := models.SelectFannieMae(models.FannieMaeARM76)

	passing := evaluate(t, input(t, sel, "75", "750000", nil))
	require.NotNil(t, passing.StressDSCRTest)
	assert.True(t, passing.StressDSCRTest.Passed)
	assert.True(t, passing.StressDSCRTest.Required.Equal(d("1")))
	assert.True(t, passing.StressDSCRTest.Actual.LessThan(passing.DSCRTest.Actual))

	// Passes at the note rate, fails once the rate is shocked by 2%.
	failing := evaluate(t, input(t, sel, "75", "650000", nil))
	assert.True(t, failing.DSCRTest.Actual.GreaterThan(d("1.2")))
	assert.False(t, failing.StressDSCRTest.Passed)
}

func TestEvaluate_SupplementalCombinedLimits(t *testing.T) {
	deal := &models.CalculationInputs{
		ExistingFirstLien: &models.SupplementalLien{Balance: d("3500000"), AnnualDebtService: d("250000")},
	}

	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeSupplemental), "30", "750000", deal))

	require.NotNil(t, result.CombinedLTVTest)
	require.NotNil(t, result.CombinedDSCRTest)
	assert.True(t, result.CombinedLTVTest.Actual.Equal(d("65")))
	assert.True(t, result.CombinedLTVTest.Passed)
	assert.True(t, result.CombinedDSCRTest.Passed)
	assert.True(t, result.CombinedDSCRTest.Actual.LessThan(result.DSCRTest.Actual))
}

func TestEvaluate_SmallBalanceMarketTier(t *testing.T) {
	deal := &models.CalculationInputs{MarketTier: models.MarketTierVerySmall}

	result := evaluate(t, input(t, models.SelectFreddieMac(models.FreddieMacSmallBalance), "72", "750000", deal))

	assert.True(t, result.MaxLTVPercent.Equal(d("70")))
	assert.True(t, result.MinDSCR.Equal(d("1.4")))
	assert.False(t, result.LTVTest.Passed)
	require.NotNil(t, result.MarketTierTest)
	assert.False(t, result.MarketTierTest.Passed)
	require.NotNil(t, result.LoanAmountTest)
	assert.True(t, result.LoanAmountTest.Passed)
}

func TestEvaluate_LeaseUpOccupancyFloor(t *testing.T) {
	in := input(t, models.SelectFreddieMac(models.FreddieMacLeaseUp), "60", "750000", nil)
	in.OccupancyPercent = d("60")

	result := evaluate(t, in)

	require.NotNil(t, result.OccupancyFloorTest)
	assert.True(t, result.OccupancyFloorTest.Required.Equal(d("65")))
	assert.False(t, result.OccupancyFloorTest.Passed)
}

func TestComplianceResult_JSONRoundTrip(t *testing.T) {
	result := evaluate(t, input(t, models.SelectFannieMae(models.FannieMaeSeniorsHousing), "75", "750000", completeDeal()))

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded models.ComplianceResult
	require.NoError(t, json.Unmarshal(data, &decoded))

	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(result, &decoded, opt); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, decoded.BlendedDSCRTest)
	assert.Nil(t, decoded.StressDSCRTest)
}
