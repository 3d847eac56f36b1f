package underwriting_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/sizing"
	"underwriting-engine/internal/services/underwriting"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func growth(n int, rate string) []decimal.Decimal {
	rates := make([]decimal.Decimal, n)
	for i := range rates {
		rates[i] = d(rate)
	}
	return rates
}

// sampleDeal is a 100 unit stabilized multifamily acquisition.
func sampleDeal(product models.ProductSelection) *models.CalculationInputs {
	return &models.CalculationInputs{
		DealName:               "Maple Court",
		PropertyType:           models.PropertyTypeMultifamily,
		RentPerUnit:            d("1500"),
		UnitCount:              100,
		OccupancyPercent:       dp("95"),
		PurchasePrice:          d("12000000"),
		ClosingCosts:           d("120000"),
		LTVPercent:             d("70"),
		InterestRate:           d("6"),
		AmortizationYears:      30,
		TermYears:              10,
		HoldPeriodYears:        5,
		MarketCapRatePercent:   d("6"),
		GrowthRatesPercent:     growth(5, "3"),
		DispositionCostPercent: d("2"),
		Product:                product,
	}
}

func newEngine(t *testing.T) *underwriting.Engine {
	t.Helper()
	c, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	return underwriting.NewEngine(c)
}

func TestAssemble_ConventionalDeal(t *testing.T) {
	engine := newEngine(t)

	result, err := engine.Assemble(sampleDeal(models.SelectFannieMae(models.FannieMaeConventional)))
	require.NoError(t, err)

	assert.Equal(t, models.ThresholdSourceAgency, result.ThresholdSource)
	assert.True(t, result.Operating.GrossPotentialRent.Equal(d("1800000")))
	assert.True(t, result.Operating.EffectiveGrossIncome.Equal(d("1940850")))
	assert.True(t, result.Loan.Amount().Equal(d("8400000")))
	assert.True(t, result.DSCR.GreaterThan(d("1.4")))
	assert.Len(t, result.CashFlows, 5)
	require.NotNil(t, result.Returns.IRRPercent)
	assert.True(t, result.Returns.EquityInvested.Equal(d("3720000")))

	require.NotNil(t, result.FannieMae)
	assert.Nil(t, result.FreddieMac)
	assert.Equal(t, models.AgencyFannieMae, result.FannieMae.Agency)
}

func TestAssemble_ManufacturedHousingOccupancyCap(t *testing.T) {
	engine := newEngine(t)
	deal := sampleDeal(models.SelectFreddieMac(models.FreddieMacManufacturedHousing))
	deal.PropertyType = models.PropertyTypeManufacturedHousing
	deal.OccupancyPercent = dp("98")

	result, err := engine.Assemble(deal)
	require.NoError(t, err)

	assert.True(t, result.Operating.OccupancyPercent.Equal(d("95")))
	assert.True(t, result.Operating.VacancyLoss.Equal(d("90000")), "vacancy on 95%% occupancy, got %s", result.Operating.VacancyLoss)
	require.NotNil(t, result.FreddieMac)
	assert.Nil(t, result.FannieMae)
}

func TestAssemble_RequestedLoanDrivesTestsNotSizing(t *testing.T) {
	engine := newEngine(t)
	deal := sampleDeal(models.SelectFannieMae(models.FannieMaeConventional))
	deal.LTVPercent = d("50")

	result, err := engine.Assemble(deal)
	require.NoError(t, err)

	assert.True(t, result.Loan.Amount().Equal(d("6000000")))
	assert.True(t, result.Sizing.MaxLoan.GreaterThan(result.Loan.Amount()), "sizing stays informational, got %s", result.Sizing.MaxLoan)
	assert.True(t, result.AnnualDebtService.Equal(sizing.AnnualDebtService(result.Loan)))
	require.NotNil(t, result.FannieMae)
	assert.True(t, result.FannieMae.LTVTest.Actual.Equal(d("50")), "ltv test actual %s", result.FannieMae.LTVTest.Actual)
	assert.True(t, result.FannieMae.DSCRTest.Actual.Equal(result.DSCR))
}

func TestAssemble_UnselectedUsesProtocolDefaults(t *testing.T) {
	engine := newEngine(t)
	deal := sampleDeal(models.Unselected())
	deal.OccupancyPercent = nil

	result, err := engine.Assemble(deal)
	require.NoError(t, err)

	assert.Equal(t, models.ThresholdSourceProtocolDefault, result.ThresholdSource)
	assert.True(t, result.Sizing.MinDSCR.Equal(d("1.25")))
	assert.True(t, result.Sizing.MaxLTVPercent.Equal(d("75")))
	assert.True(t, result.Operating.OccupancyPercent.Equal(d("95")))
	assert.Nil(t, result.FannieMae)
	assert.Nil(t, result.FreddieMac)
	assert.Nil(t, result.Compliance())
}

func TestAssemble_PropertyTypeAliases(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		alias   string
		minDSCR string
		maxLTV  string
	}{
		{"coop", "1.55", "55"},
		{"Assisted Living", "1.40", "70"},
		{"apartments", "1.25", "75"},
		{"mobile-home-park", "1.25", "75"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			deal := sampleDeal(models.Unselected())
			deal.PropertyType = models.PropertyType(tt.alias)

			result, err := engine.Assemble(deal)
			require.NoError(t, err)

			assert.True(t, result.Sizing.MinDSCR.Equal(d(tt.minDSCR)), "min dscr %s", result.Sizing.MinDSCR)
			assert.True(t, result.Sizing.MaxLTVPercent.Equal(d(tt.maxLTV)), "max ltv %s", result.Sizing.MaxLTVPercent)
		})
	}

	deal := sampleDeal(models.Unselected())
	deal.PropertyType = "hotel"
	_, err := engine.Assemble(deal)
	assert.ErrorIs(t, err, models.ErrInvalidInputs)
}

func TestAssemble_DetailedExpenses(t *testing.T) {
	engine := newEngine(t)

	deal := sampleDeal(models.Unselected())
	deal.RentPerUnit = d("800")
	deal.OccupancyPercent = dp("100")
	deal.ActualOtherIncome = dp("40000")
	deal.ExpenseLines = &models.ExpenseLines{
		RealEstateTaxes: dp("100000"),
		Insurance:       dp("40000"),
	}

	result, err := engine.Assemble(deal)
	require.NoError(t, err)

	assert.True(t, result.Operating.EffectiveGrossIncome.Equal(d("1000000")))
	assert.True(t, result.Operating.OperatingExpenses.Equal(d("180000")),
		"protocol management fee of 4%% fills the missing line, got %s", result.Operating.OperatingExpenses)
	assert.Nil(t, deal.ExpenseLines.ManagementFeePercent, "caller lines must not be mutated")

	deal.ExpenseLines.ManagementFeePercent = dp("5")
	result, err = engine.Assemble(deal)
	require.NoError(t, err)
	assert.True(t, result.Operating.OperatingExpenses.Equal(d("190000")))
}

type missingProfiles struct{}

func (missingProfiles) Lookup(key models.ProductKey) (models.ProductProfile, error) {
	return models.ProductProfile{}, fmt.Errorf("%w: %s", catalog.ErrProfileNotFound, key)
}

func TestAssemble_UnresolvableProductFails(t *testing.T) {
	engine := underwriting.NewEngine(missingProfiles{})

	_, err := engine.Assemble(sampleDeal(models.SelectFreddieMac(models.FreddieMacValueAdd)))

	assert.ErrorIs(t, err, catalog.ErrProfileNotFound)
}

func TestAssemble_InvalidInputs(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name   string
		mutate func(*models.CalculationInputs)
		want   error
	}{
		{"zero purchase price", func(in *models.CalculationInputs) { in.PurchasePrice = decimal.Zero }, models.ErrInvalidInputs},
		{"short growth series", func(in *models.CalculationInputs) { in.GrowthRatesPercent = growth(2, "3") }, models.ErrInvalidInputs},
		{"ltv above 100", func(in *models.CalculationInputs) { in.LTVPercent = d("101") }, models.ErrInvalidLTV},
		{"zero term", func(in *models.CalculationInputs) { in.TermYears = 0 }, models.ErrInvalidTerm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deal := sampleDeal(models.SelectFannieMae(models.FannieMaeConventional))
			tt.mutate(deal)

			_, err := engine.Assemble(deal)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := engine.Assemble(nil)
	assert.ErrorIs(t, err, models.ErrInvalidInputs)
}

func TestAssemble_ZeroEquityKeepsRunAlive(t *testing.T) {
	engine := newEngine(t)
	deal := sampleDeal(models.Unselected())
	deal.LTVPercent = d("100")
	deal.ClosingCosts = decimal.Zero

	result, err := engine.Assemble(deal)
	require.NoError(t, err)

	assert.Nil(t, result.Returns.IRRPercent)
	assert.NotEmpty(t, result.Returns.IRRError)
	assert.True(t, result.Returns.EquityMultiple.IsZero())
}

func TestAssemble_ConcurrentCallsAgree(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := newEngine(t)
	want, err := engine.Assemble(sampleDeal(models.SelectFreddieMac(models.FreddieMacConventional)))
	require.NoError(t, err)

	const workers = 16
	results := make([]*models.CalculationResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Assemble(sampleDeal(models.SelectFreddieMac(models.FreddieMacConventional)))
		}(i)
	}
	wg.Wait()

	decimalEqual := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	for i := range results {
		require.NoError(t, errs[i])
		if diff := cmp.Diff(want, results[i], decimalEqual, cmp.AllowUnexported(models.ProductSelection{}, models.LoanTerms{})); diff != "" {
			t.Errorf("result %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}
