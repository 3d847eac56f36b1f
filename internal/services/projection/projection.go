// Package projection projects a hold period year by year and derives exit
// proceeds and investor returns.
package projection

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/sizing"
)

var ErrInvalidProjection = errors.New("invalid projection input")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Input is the stabilized year-one operation plus the hold assumptions.
type Input struct {
	EffectiveGrossIncome   decimal.Decimal
	OperatingExpenses      decimal.Decimal
	Loan                   models.LoanTerms
	PurchasePrice          decimal.Decimal
	ClosingCosts           decimal.Decimal
	HoldPeriodYears        int
	GrowthRatesPercent     []decimal.Decimal
	ExitCapRatePercent     decimal.Decimal
	DispositionCostPercent decimal.Decimal
}

// Projection is the full hold: yearly cash flows, the sale and the returns.
type Projection struct {
	CashFlows []models.CashFlowYear
	Exit      models.ExitAnalysis
	Returns   models.ReturnsAnalysis
}

// EquityInvested is the cash the buyer brings: price less loan plus closing costs.
func EquityInvested(purchasePrice, loanAmount, closingCosts decimal.Decimal) decimal.Decimal {
	return purchasePrice.Sub(loanAmount).Add(closingCosts)
}

// Grow applies one year of growth.
func Grow(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(one.Add(ratePercent.Div(hundred))).Round(2)
}

// CashOnCash is cash flow as a percent of equity, zero when no equity is invested.
func CashOnCash(cashFlow, equity decimal.Decimal) decimal.Decimal {
	if !equity.IsPositive() {
		return decimal.Zero
	}
	return cashFlow.Div(equity).Mul(hundred).Round(4)
}

// EquityMultiple is total distributions over equity, zero when no equity is invested.
func EquityMultiple(cashFlows []models.CashFlowYear, netSaleProceeds, equity decimal.Decimal) decimal.Decimal {
	if !equity.IsPositive() {
		return decimal.Zero
	}
	return totalCashFlow(cashFlows).Add(netSaleProceeds).Div(equity).Round(4)
}

// Project runs the hold period. Year 1 is the stabilized operation; each later
// year grows EGI and OpEx independently by the previous year's rate. The exit
// is valued on one further year of growth. An unsolvable IRR is reported on
// Returns, not as an error.
func Project(in Input) (Projection, error) {
	n := in.HoldPeriodYears
	if n < 1 {
		return Projection{}, fmt.Errorf("%w: hold period must be at least 1 year", ErrInvalidProjection)
	}
	if len(in.GrowthRatesPercent) < n {
		return Projection{}, fmt.Errorf("%w: need %d growth rates, got %d", ErrInvalidProjection, n, len(in.GrowthRatesPercent))
	}
	if !in.ExitCapRatePercent.IsPositive() {
		return Projection{}, fmt.Errorf("%w: exit cap rate must be greater than 0", ErrInvalidProjection)
	}

	equity := EquityInvested(in.PurchasePrice, in.Loan.Amount(), in.ClosingCosts)
	debtService := sizing.AnnualDebtService(in.Loan)

	egi := in.EffectiveGrossIncome
	opex := in.OperatingExpenses
	years := make([]models.CashFlowYear, 0, n)
	for year := 1; year <= n; year++ {
		if year > 1 {
			g := in.GrowthRatesPercent[year-2]
			egi = Grow(egi, g)
			opex = Grow(opex, g)
		}
		noi := egi.Sub(opex)
		cf := noi.Sub(debtService)
		years = append(years, models.CashFlowYear{
			Year:                 year,
			EffectiveGrossIncome: egi,
			OperatingExpenses:    opex,
			NetOperatingIncome:   noi,
			DebtService:          debtService,
			CashFlow:             cf,
			CashOnCashPercent:    CashOnCash(cf, equity),
		})
	}

	g := in.GrowthRatesPercent[n-1]
	exitNOI := Grow(egi, g).Sub(Grow(opex, g))
	exit := exitAnalysis(exitNOI, in, n)

	return Projection{
		CashFlows: years,
		Exit:      exit,
		Returns:   returns(years, exit.NetSaleProceeds, equity),
	}, nil
}

func exitAnalysis(exitNOI decimal.Decimal, in Input, holdYears int) models.ExitAnalysis {
	value := exitNOI.Div(in.ExitCapRatePercent.Div(hundred)).Round(2)
	balance := sizing.RemainingBalance(in.Loan, holdYears*12)
	disposition := value.Mul(in.DispositionCostPercent).Div(hundred).Round(2)

	return models.ExitAnalysis{
		ExitCapRatePercent: in.ExitCapRatePercent,
		ExitYearNOI:        exitNOI,
		ExitValue:          value,
		LoanBalance:        balance,
		DispositionCosts:   disposition,
		NetSaleProceeds:    value.Sub(balance).Sub(disposition),
	}
}

func returns(years []models.CashFlowYear, netSaleProceeds, equity decimal.Decimal) models.ReturnsAnalysis {
	r := models.ReturnsAnalysis{
		EquityInvested:           equity,
		EquityMultiple:           EquityMultiple(years, netSaleProceeds, equity),
		AverageCashOnCashPercent: averageCashOnCash(years),
		TotalProfit:              totalCashFlow(years).Add(netSaleProceeds).Sub(equity),
	}

	if !equity.IsPositive() {
		r.IRRError = "equity invested must be greater than 0"
		return r
	}

	irr, err := IRR(Flows(years, netSaleProceeds, equity))
	if err != nil {
		r.IRRError = err.Error()
		return r
	}
	pct := decimal.NewFromFloat(irr * 100).Round(4)
	r.IRRPercent = &pct
	return r
}

// Flows builds the IRR series {-equity, CF1, ..., CFn + net sale proceeds}.
func Flows(years []models.CashFlowYear, netSaleProceeds, equity decimal.Decimal) []float64 {
	flows := make([]float64, 0, len(years)+1)
	flows = append(flows, equity.Neg().InexactFloat64())
	for i, y := range years {
		cf := y.CashFlow
		if i == len(years)-1 {
			cf = cf.Add(netSaleProceeds)
		}
		flows = append(flows, cf.InexactFloat64())
	}
	return flows
}

func totalCashFlow(years []models.CashFlowYear) decimal.Decimal {
	total := decimal.Zero
	for _, y := range years {
		total = total.Add(y.CashFlow)
	}
	return total
}

func averageCashOnCash(years []models.CashFlowYear) decimal.Decimal {
	if len(years) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, y := range years {
		sum = sum.Add(y.CashOnCashPercent)
	}
	return sum.Div(decimal.NewFromInt(int64(len(years)))).Round(4)
}
