// Package metrics derives the stabilized operating statement of a deal.
// All functions are pure and assume inputs were validated upstream.
package metrics

import (
	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Default assumptions used when a deal supplies neither actuals nor overrides.
var (
	DefaultOtherIncomePercent = decimal.RequireFromString("13.5")
	DefaultOpExRatioPercent   = decimal.RequireFromString("54.35")
)

// Assumptions are the fallback ratios applied when actuals are missing.
type Assumptions struct {
	OtherIncomePercent decimal.Decimal
	OpExRatioPercent   decimal.Decimal
}

// DefaultAssumptions returns the protocol-wide fallback ratios.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		OtherIncomePercent: DefaultOtherIncomePercent,
		OpExRatioPercent:   DefaultOpExRatioPercent,
	}
}

// GrossPotentialRent annualizes monthly rent across all units.
func GrossPotentialRent(monthlyRentPerUnit decimal.Decimal, unitCount int) decimal.Decimal {
	return monthlyRentPerUnit.Mul(decimal.NewFromInt(int64(unitCount))).Mul(twelve)
}

// VacancyLoss is the rent lost to the unoccupied share of the property.
func VacancyLoss(gpr, occupancyPercent decimal.Decimal) decimal.Decimal {
	vacancy := decimal.NewFromInt(1).Sub(occupancyPercent.Div(hundred))
	return gpr.Mul(vacancy)
}

// NetRent is GPR less vacancy.
func NetRent(gpr, vacancyLoss decimal.Decimal) decimal.Decimal {
	return gpr.Sub(vacancyLoss)
}

// OtherIncome returns the actual figure when provided, otherwise a percentage of net rent.
func OtherIncome(netRent decimal.Decimal, actual *decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	if actual != nil {
		return *actual
	}
	return netRent.Mul(percent).Div(hundred)
}

// EffectiveGrossIncome is net rent plus other income.
func EffectiveGrossIncome(netRent, otherIncome decimal.Decimal) decimal.Decimal {
	return netRent.Add(otherIncome)
}

// OperatingExpenses returns the actual figure when provided, otherwise a ratio of EGI.
func OperatingExpenses(egi decimal.Decimal, actual *decimal.Decimal, ratioPercent decimal.Decimal) decimal.Decimal {
	if actual != nil {
		return *actual
	}
	return egi.Mul(ratioPercent).Div(hundred)
}

// NetOperatingIncome is EGI less operating expenses.
func NetOperatingIncome(egi, opex decimal.Decimal) decimal.Decimal {
	return egi.Sub(opex)
}

// NOIMargin is NOI as a fraction of EGI, or zero when EGI is zero.
func NOIMargin(noi, egi decimal.Decimal) decimal.Decimal {
	if egi.IsZero() {
		return decimal.Zero
	}
	return noi.Div(egi)
}

// PerUnit divides an annual amount across units, or returns zero for an empty property.
func PerUnit(amount decimal.Decimal, unitCount int) decimal.Decimal {
	if unitCount <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(unitCount)))
}

// DetailedExpenses totals itemized expense lines plus a management fee
// charged as a percentage of base. Missing lines contribute zero.
func DetailedExpenses(lines *models.ExpenseLines, base decimal.Decimal) decimal.Decimal {
	if lines == nil {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, item := range lines.Items() {
		if item != nil {
			total = total.Add(*item)
		}
	}
	if lines.ManagementFeePercent != nil {
		total = total.Add(base.Mul(*lines.ManagementFeePercent).Div(hundred))
	}
	return total
}

// Input is the subset of deal data the calculator needs.
type Input struct {
	RentPerUnit             decimal.Decimal
	UnitCount               int
	OccupancyPercent        decimal.Decimal
	ActualOtherIncome       *decimal.Decimal
	ActualOperatingExpenses *decimal.Decimal
	ExpenseLines            *models.ExpenseLines
}

// Calculate builds the full operating statement. Actual expenses win over
// itemized lines, which win over the OpEx ratio.
func Calculate(in Input, a Assumptions) models.OperatingStatement {
	gpr := GrossPotentialRent(in.RentPerUnit, in.UnitCount)
	vacancy := VacancyLoss(gpr, in.OccupancyPercent)
	netRent := NetRent(gpr, vacancy)
	other := OtherIncome(netRent, in.ActualOtherIncome, a.OtherIncomePercent)
	egi := EffectiveGrossIncome(netRent, other)

	actualExpenses := in.ActualOperatingExpenses
	if actualExpenses == nil && in.ExpenseLines != nil {
		itemized := DetailedExpenses(in.ExpenseLines, egi)
		actualExpenses = &itemized
	}
	opex := OperatingExpenses(egi, actualExpenses, a.OpExRatioPercent)
	noi := NetOperatingIncome(egi, opex)

	expenseRatio := decimal.Zero
	if !egi.IsZero() {
		expenseRatio = opex.Div(egi).Mul(hundred)
	}

	return models.OperatingStatement{
		GrossPotentialRent:   gpr,
		VacancyLoss:          vacancy,
		NetRentalIncome:      netRent,
		OtherIncome:          other,
		EffectiveGrossIncome: egi,
		OperatingExpenses:    opex,
		NetOperatingIncome:   noi,
		NOIMargin:            NOIMargin(noi, egi),
		NOIPerUnit:           PerUnit(noi, in.UnitCount),
		ExpenseRatioPercent:  expenseRatio,
		OccupancyPercent:     in.OccupancyPercent,
	}
}
