// Package underwriting assembles the full underwriting run: operating
// metrics, debt sizing, hold projection and agency compliance.
package underwriting

import (
	"fmt"

	"go.uber.org/zap"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/compliance"
	"underwriting-engine/internal/services/metrics"
	"underwriting-engine/internal/services/projection"
	"underwriting-engine/internal/services/sizing"
)

// ProfileSource resolves agency product profiles. Both *catalog.Catalog and
// *catalog.Registry satisfy it.
type ProfileSource interface {
	Lookup(key models.ProductKey) (models.ProductProfile, error)
}

// Engine runs underwriting pipelines. It holds only read-only collaborators,
// so one Engine may serve any number of concurrent Assemble calls.
type Engine struct {
	profiles  ProfileSource
	defaults  DefaultsProvider
	evaluator *compliance.Evaluator
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults replaces the standard protocol defaults.
func WithDefaults(p DefaultsProvider) Option {
	return func(e *Engine) { e.defaults = p }
}

// WithLogger sets the logger used for stage tracing.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine that resolves products through profiles.
func NewEngine(profiles ProfileSource, opts ...Option) *Engine {
	e := &Engine{
		profiles:  profiles,
		defaults:  StandardProtocol{},
		evaluator: compliance.NewEvaluator(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithProfiles returns a copy of the engine bound to a different profile
// source, typically one catalog snapshot.
func (e *Engine) WithProfiles(profiles ProfileSource) *Engine {
	clone := *e
	clone.profiles = profiles
	return &clone
}

// Assemble underwrites one deal. Invalid inputs and unresolvable products
// abort the run; an unsolvable IRR does not.
func (e *Engine) Assemble(in *models.CalculationInputs) (*models.CalculationResult, error) {
	if err := models.ValidateCalculationInputs(in); err != nil {
		return nil, err
	}

	propertyType := models.NormalizePropertyType(string(in.PropertyType))
	defaults := e.defaults.Defaults(propertyType)
	log := e.logger.With(
		zap.String("deal", in.DealName),
		zap.String("product", in.Product.String()),
	)

	// Stage 1: thresholds
	thresholds := defaults.Thresholds()
	source := models.ThresholdSourceProtocolDefault
	var profile *models.ProductProfile
	if in.Product.IsSelected() {
		p, err := e.profiles.Lookup(in.Product.Key())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product profile: %w", err)
		}
		profile = &p
		thresholds = p.ResolveThresholds(in.MarketTier)
		source = models.ThresholdSourceAgency
	}
	log.Debug("Thresholds resolved",
		zap.String("source", string(source)),
		zap.String("min_dscr", thresholds.MinDSCR.String()),
		zap.String("max_ltv_percent", thresholds.MaxLTVPercent.String()),
	)

	// Stage 2: operating statement
	occupancy := defaults.OccupancyPercent
	if in.OccupancyPercent != nil {
		occupancy = *in.OccupancyPercent
	}
	if profile != nil {
		occupancy = profile.EffectiveOccupancy(occupancy)
	}

	statement := metrics.Calculate(metrics.Input{
		RentPerUnit:             in.RentPerUnit,
		UnitCount:               in.UnitCount,
		OccupancyPercent:        occupancy,
		ActualOtherIncome:       in.ActualOtherIncome,
		ActualOperatingExpenses: in.ActualOperatingExpenses,
		ExpenseLines:            expenseLines(in.ExpenseLines, defaults),
	}, assumptions(in, defaults))
	noi := statement.NetOperatingIncome
	log.Debug("Operating statement complete",
		zap.String("occupancy_percent", occupancy.String()),
		zap.String("egi", statement.EffectiveGrossIncome.String()),
		zap.String("noi", noi.String()),
	)

	// Stage 3: debt sizing
	loanSizing := sizing.Size(sizing.Params{
		NOI:               noi,
		PurchasePrice:     in.PurchasePrice,
		MaxLTVPercent:     thresholds.MaxLTVPercent,
		MinDSCR:           thresholds.MinDSCR,
		RatePercent:       in.InterestRate,
		AmortizationYears: in.AmortizationYears,
		InterestOnly:      in.InterestOnly,
	})
	loan, err := in.LoanTerms()
	if err != nil {
		return nil, err
	}
	debtService := sizing.AnnualDebtService(loan)
	dscr := sizing.DSCR(noi, debtService).Round(4)
	log.Debug("Loan sized",
		zap.String("max_loan", loanSizing.MaxLoan.String()),
		zap.String("constraining_test", string(loanSizing.ConstrainingTest)),
		zap.String("loan_amount", loan.Amount().String()),
		zap.String("dscr", dscr.String()),
	)

	// Stage 4: hold projection
	hold, err := projection.Project(projection.Input{
		EffectiveGrossIncome:   statement.EffectiveGrossIncome,
		OperatingExpenses:      statement.OperatingExpenses,
		Loan:                   loan,
		PurchasePrice:          in.PurchasePrice,
		ClosingCosts:           in.ClosingCosts,
		HoldPeriodYears:        in.HoldPeriodYears,
		GrowthRatesPercent:     in.GrowthRatesPercent,
		ExitCapRatePercent:     in.MarketCapRatePercent,
		DispositionCostPercent: in.DispositionCostPercent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to project hold period: %w", err)
	}
	if hold.Returns.IRRPercent == nil {
		log.Warn("IRR unavailable", zap.String("reason", hold.Returns.IRRError))
	}

	result := &models.CalculationResult{
		Product:           in.Product,
		ThresholdSource:   source,
		Operating:         statement,
		Sizing:            loanSizing,
		Loan:              loan,
		AnnualDebtService: debtService,
		DSCR:              dscr,
		CashFlows:         hold.CashFlows,
		Exit:              hold.Exit,
		Returns:           hold.Returns,
	}

	// Stage 5: agency compliance
	if profile == nil {
		return result, nil
	}
	cr, err := e.evaluator.Evaluate(compliance.Input{
		Product:           in.Product,
		Profile:           *profile,
		Loan:              loan,
		PurchasePrice:     in.PurchasePrice,
		NOI:               noi,
		AnnualDebtService: debtService,
		DSCR:              dscr,
		OccupancyPercent:  occupancy,
		Deal:              in,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate compliance: %w", err)
	}
	switch cr.Agency {
	case models.AgencyFannieMae:
		result.FannieMae = cr
	case models.AgencyFreddieMac:
		result.FreddieMac = cr
	}
	log.Debug("Compliance evaluated",
		zap.Bool("overall_pass", cr.OverallPass),
		zap.Strings("failed_tests", cr.FailedTests()),
	)

	return result, nil
}

func assumptions(in *models.CalculationInputs, defaults ProtocolDefaults) metrics.Assumptions {
	a := metrics.Assumptions{
		OtherIncomePercent: metrics.DefaultOtherIncomePercent,
		OpExRatioPercent:   defaults.OpExRatioPercent,
	}
	if in.OtherIncomePercent != nil {
		a.OtherIncomePercent = *in.OtherIncomePercent
	}
	if in.OpExRatioPercent != nil {
		a.OpExRatioPercent = *in.OpExRatioPercent
	}
	return a
}

// expenseLines fills in the protocol management fee without touching the caller's lines.
func expenseLines(lines *models.ExpenseLines, defaults ProtocolDefaults) *models.ExpenseLines {
	if lines == nil || lines.ManagementFeePercent != nil {
		return lines
	}
	filled := *lines
	fee := defaults.ManagementFeePercent
	filled.ManagementFeePercent = &fee
	return &filled
}
