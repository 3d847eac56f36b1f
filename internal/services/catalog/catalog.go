// Package catalog holds the read-only table of agency product profiles.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/compliance"
)

var (
	ErrProfileNotFound = errors.New("product profile not found")
	ErrInvalidCatalog  = errors.New("invalid product catalog")
)

var hundred = decimal.NewFromInt(100)

// Catalog is an immutable set of product profiles. It is safe for any number
// of concurrent readers.
type Catalog struct {
	version  string
	profiles map[models.ProductKey]models.ProductProfile
}

// New validates profiles and builds a catalog from them.
func New(version string, profiles []models.ProductProfile) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		profiles: make(map[models.ProductKey]models.ProductProfile, len(profiles)),
	}
	for _, p := range profiles {
		if err := validateProfile(p); err != nil {
			return nil, err
		}
		if _, exists := c.profiles[p.Key]; exists {
			return nil, fmt.Errorf("%w: duplicate profile %s", ErrInvalidCatalog, p.Key)
		}
		c.profiles[p.Key] = cloneProfile(p)
	}
	return c, nil
}

// Version identifies the term sheets the catalog was built from.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of profiles.
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Lookup returns a copy of the profile for key. A missing key is an error,
// never a default.
func (c *Catalog) Lookup(key models.ProductKey) (models.ProductProfile, error) {
	p, ok := c.profiles[key]
	if !ok {
		return models.ProductProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, key)
	}
	return cloneProfile(p), nil
}

// Profiles lists the profiles of one agency, or all profiles for AgencyNone,
// ordered by agency then product type.
func (c *Catalog) Profiles(agency models.Agency) []models.ProductProfile {
	list := make([]models.ProductProfile, 0, len(c.profiles))
	for key, p := range c.profiles {
		if agency == models.AgencyNone || key.Agency == agency {
			list = append(list, cloneProfile(p))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Key.Agency != list[j].Key.Agency {
			return list[i].Key.Agency < list[j].Key.Agency
		}
		return list[i].Key.ProductType < list[j].Key.ProductType
	})
	return list
}

// RequireProducts fails when any of keys has no profile.
func (c *Catalog) RequireProducts(keys []models.ProductKey) error {
	var missing []string
	for _, key := range keys {
		if _, ok := c.profiles[key]; !ok {
			missing = append(missing, key.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing profiles %v", ErrInvalidCatalog, missing)
	}
	return nil
}

func validateProfile(p models.ProductProfile) error {
	fail := func(reason string) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidCatalog, p.Key, reason)
	}

	switch p.Key.Agency {
	case models.AgencyFannieMae:
		if !models.FannieMaeProduct(p.Key.ProductType).IsValid() {
			return fail("unknown product type")
		}
	case models.AgencyFreddieMac:
		if !models.FreddieMacProduct(p.Key.ProductType).IsValid() {
			return fail("unknown product type")
		}
	default:
		return fail("unknown agency")
	}

	if !p.MaxLTVPercent.IsPositive() || p.MaxLTVPercent.GreaterThan(hundred) {
		return fail("max ltv must be in (0, 100]")
	}
	if !p.MinDSCR.IsPositive() {
		return fail("min dscr must be positive")
	}
	if p.MaxAmortizationYears <= 0 {
		return fail("max amortization must be positive")
	}
	if p.MinLoanAmount.IsNegative() {
		return fail("min loan amount cannot be negative")
	}
	if p.MaxLoanAmount != nil && p.MaxLoanAmount.LessThan(p.MinLoanAmount) {
		return fail("max loan amount below min loan amount")
	}
	if p.MinTermYears < 0 || (p.MaxTermYears > 0 && p.MaxTermYears < p.MinTermYears) {
		return fail("invalid term range")
	}
	if p.VacancyFloorPercent.IsNegative() || p.VacancyFloorPercent.GreaterThanOrEqual(hundred) {
		return fail("vacancy floor must be in [0, 100)")
	}
	if p.IncomeCap != nil && p.IncomeCap.Kind != models.IncomeCapSkilledNursing && p.IncomeCap.Kind != models.IncomeCapParkOwnedHomes {
		return fail("unknown income cap kind")
	}
	for tier := range p.MarketTiers {
		if !tier.IsValid() {
			return fail("unknown market tier " + string(tier))
		}
	}
	if err := compliance.CheckProfile(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return nil
}

// cloneProfile copies every pointer and map so callers cannot reach catalog state.
func cloneProfile(p models.ProductProfile) models.ProductProfile {
	out := p
	if p.MaxLoanAmount != nil {
		v := *p.MaxLoanAmount
		out.MaxLoanAmount = &v
	}
	if p.Seniors != nil {
		v := *p.Seniors
		out.Seniors = &v
	}
	if p.Cooperative != nil {
		v := *p.Cooperative
		out.Cooperative = &v
	}
	if p.Green != nil {
		v := *p.Green
		out.Green = &v
	}
	if p.Rehab != nil {
		v := *p.Rehab
		out.Rehab = &v
	}
	if p.IncomeCap != nil {
		v := *p.IncomeCap
		out.IncomeCap = &v
	}
	if p.StressTest != nil {
		v := *p.StressTest
		out.StressTest = &v
	}
	if p.Supplemental != nil {
		v := *p.Supplemental
		out.Supplemental = &v
	}
	if p.LeaseUp != nil {
		v := *p.LeaseUp
		out.LeaseUp = &v
	}
	if p.Student != nil {
		v := *p.Student
		out.Student = &v
	}
	if p.MarketTiers != nil {
		out.MarketTiers = make(map[models.MarketTier]models.MarketTierOverride, len(p.MarketTiers))
		for k, v := range p.MarketTiers {
			out.MarketTiers[k] = v
		}
	}
	return out
}
