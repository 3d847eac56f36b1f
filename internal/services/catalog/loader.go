package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"underwriting-engine/internal/models"
)

//go:embed termsheets/*.yaml
var termSheets embed.FS

// termSheet is the on-disk layout of one agency's published terms.
type termSheet struct {
	Agency   models.Agency   `yaml:"agency"`
	Version  string          `yaml:"version"`
	Products []productRecord `yaml:"products"`
}

type productRecord struct {
	ProductType          string           `yaml:"product_type"`
	Name                 string           `yaml:"name"`
	MaxLTVPercent        decimal.Decimal  `yaml:"max_ltv_percent"`
	MinDSCR              decimal.Decimal  `yaml:"min_dscr"`
	MaxAmortizationYears int              `yaml:"max_amortization_years"`
	MinLoanAmount        decimal.Decimal  `yaml:"min_loan_amount"`
	MaxLoanAmount        *decimal.Decimal `yaml:"max_loan_amount"`
	MinOccupancyPercent  decimal.Decimal  `yaml:"min_occupancy_percent"`
	VacancyFloorPercent  decimal.Decimal  `yaml:"vacancy_floor_percent"`
	MinTermYears         int              `yaml:"min_term_years"`
	MaxTermYears         int              `yaml:"max_term_years"`
	FixedRate            bool             `yaml:"fixed_rate"`
	AdjustableRate       bool             `yaml:"adjustable_rate"`
	InterestOnlyAllowed  bool             `yaml:"interest_only_allowed"`

	Seniors *struct {
		IndependentLivingDSCR decimal.Decimal `yaml:"independent_living_dscr"`
		AssistedLivingDSCR    decimal.Decimal `yaml:"assisted_living_dscr"`
		MemoryCareDSCR        decimal.Decimal `yaml:"memory_care_dscr"`
	} `yaml:"seniors"`
	Cooperative *struct {
		ActualMinDSCR decimal.Decimal `yaml:"actual_min_dscr"`
		MarketMinDSCR decimal.Decimal `yaml:"market_min_dscr"`
	} `yaml:"cooperative"`
	Green *struct {
		OwnerSavingsPercent  decimal.Decimal `yaml:"owner_savings_percent"`
		TenantSavingsPercent decimal.Decimal `yaml:"tenant_savings_percent"`
	} `yaml:"green"`
	Rehab *struct {
		MinDSCR             decimal.Decimal `yaml:"min_dscr"`
		MinOccupancyPercent decimal.Decimal `yaml:"min_occupancy_percent"`
	} `yaml:"rehab"`
	IncomeCap *struct {
		Kind          models.IncomeCapKind `yaml:"kind"`
		MaxNOIPercent decimal.Decimal      `yaml:"max_noi_percent"`
	} `yaml:"income_cap"`
	StressTest *struct {
		RateAddPercent decimal.Decimal `yaml:"rate_add_percent"`
		MinDSCR        decimal.Decimal `yaml:"min_dscr"`
	} `yaml:"stress_test"`
	Supplemental *struct {
		CombinedMinDSCR       decimal.Decimal `yaml:"combined_min_dscr"`
		CombinedMaxLTVPercent decimal.Decimal `yaml:"combined_max_ltv_percent"`
	} `yaml:"supplemental"`
	LeaseUp *struct {
		MinOccupancyPercent decimal.Decimal `yaml:"min_occupancy_percent"`
	} `yaml:"lease_up"`
	Student *struct {
		MinStudentOccupancyPercent decimal.Decimal `yaml:"min_student_occupancy_percent"`
	} `yaml:"student"`
	MarketTiers map[models.MarketTier]struct {
		MaxLTVPercent decimal.Decimal `yaml:"max_ltv_percent"`
		MinDSCR       decimal.Decimal `yaml:"min_dscr"`
	} `yaml:"market_tiers"`
}

// LoadEmbedded builds the catalog from the term sheets compiled into the
// binary and checks that every supported product has an entry.
func LoadEmbedded() (*Catalog, error) {
	c, err := load(termSheets, "termsheets")
	if err != nil {
		return nil, err
	}
	if err := c.RequireProducts(models.AllProductKeys()); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLoadEmbedded is LoadEmbedded for process start-up, where a broken
// catalog must stop the process.
func MustLoadEmbedded() *Catalog {
	c, err := LoadEmbedded()
	if err != nil {
		panic("failed to load embedded product catalog: " + err.Error())
	}
	return c
}

// LoadDir builds a catalog from *.yaml term sheets in dir.
func LoadDir(dir string) (*Catalog, error) {
	c, err := load(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	if err := c.RequireProducts(models.AllProductKeys()); err != nil {
		return nil, err
	}
	return c, nil
}

func load(fsys fs.FS, dir string) (*Catalog, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list term sheets: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no term sheets found", ErrInvalidCatalog)
	}
	sort.Strings(names)

	var profiles []models.ProductProfile
	versions := make([]string, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read term sheet %s: %w", name, err)
		}
		sheet, err := parseTermSheet(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse term sheet %s: %w", name, err)
		}
		versions = append(versions, string(sheet.Agency)+"@"+sheet.Version)
		profiles = append(profiles, sheet.profiles()...)
	}

	return New(strings.Join(versions, ","), profiles)
}

// parseTermSheet decodes one agency term sheet document.
func parseTermSheet(data []byte) (*termSheet, error) {
	var sheet termSheet
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if !sheet.Agency.IsValid() {
		return nil, fmt.Errorf("%w: unknown agency %q", ErrInvalidCatalog, sheet.Agency)
	}
	if sheet.Version == "" {
		return nil, fmt.Errorf("%w: %s term sheet has no version", ErrInvalidCatalog, sheet.Agency)
	}
	return &sheet, nil
}

func (s *termSheet) profiles() []models.ProductProfile {
	profiles := make([]models.ProductProfile, 0, len(s.Products))
	for _, rec := range s.Products {
		profiles = append(profiles, rec.toProfile(s.Agency))
	}
	return profiles
}

func (r productRecord) toProfile(agency models.Agency) models.ProductProfile {
	p := models.ProductProfile{
		Key:                  models.ProductKey{Agency: agency, ProductType: r.ProductType},
		Name:                 r.Name,
		MaxLTVPercent:        r.MaxLTVPercent,
		MinDSCR:              r.MinDSCR,
		MaxAmortizationYears: r.MaxAmortizationYears,
		MinLoanAmount:        r.MinLoanAmount,
		MinOccupancyPercent:  r.MinOccupancyPercent,
		VacancyFloorPercent:  r.VacancyFloorPercent,
		MinTermYears:         r.MinTermYears,
		MaxTermYears:         r.MaxTermYears,
		FixedRate:            r.FixedRate,
		AdjustableRate:       r.AdjustableRate,
		InterestOnlyAllowed:  r.InterestOnlyAllowed,
	}
	if r.MaxLoanAmount != nil {
		v := *r.MaxLoanAmount
		p.MaxLoanAmount = &v
	}
	if r.Seniors != nil {
		p.Seniors = &models.SeniorsParams{
			IndependentLivingDSCR: r.Seniors.IndependentLivingDSCR,
			AssistedLivingDSCR:    r.Seniors.AssistedLivingDSCR,
			MemoryCareDSCR:        r.Seniors.MemoryCareDSCR,
		}
	}
	if r.Cooperative != nil {
		p.Cooperative = &models.CooperativeParams{
			ActualMinDSCR: r.Cooperative.ActualMinDSCR,
			MarketMinDSCR: r.Cooperative.MarketMinDSCR,
		}
	}
	if r.Green != nil {
		p.Green = &models.GreenParams{
			OwnerSavingsPercent:  r.Green.OwnerSavingsPercent,
			TenantSavingsPercent: r.Green.TenantSavingsPercent,
		}
	}
	if r.Rehab != nil {
		p.Rehab = &models.RehabParams{
			MinDSCR:             r.Rehab.MinDSCR,
			MinOccupancyPercent: r.Rehab.MinOccupancyPercent,
		}
	}
	if r.IncomeCap != nil {
		p.IncomeCap = &models.IncomeCapParams{
			Kind:          r.IncomeCap.Kind,
			MaxNOIPercent: r.IncomeCap.MaxNOIPercent,
		}
	}
	if r.StressTest != nil {
		p.StressTest = &models.StressParams{
			RateAddPercent: r.StressTest.RateAddPercent,
			MinDSCR:        r.StressTest.MinDSCR,
		}
	}
	if r.Supplemental != nil {
		p.Supplemental = &models.SupplementalParams{
			CombinedMinDSCR:       r.Supplemental.CombinedMinDSCR,
			CombinedMaxLTVPercent: r.Supplemental.CombinedMaxLTVPercent,
		}
	}
	if r.LeaseUp != nil {
		p.LeaseUp = &models.LeaseUpParams{MinOccupancyPercent: r.LeaseUp.MinOccupancyPercent}
	}
	if r.Student != nil {
		p.Student = &models.StudentParams{MinStudentOccupancyPercent: r.Student.MinStudentOccupancyPercent}
	}
	if len(r.MarketTiers) > 0 {
		p.MarketTiers = make(map[models.MarketTier]models.MarketTierOverride, len(r.MarketTiers))
		for tier, o := range r.MarketTiers {
			p.MarketTiers[tier] = models.MarketTierOverride{
				MaxLTVPercent: o.MaxLTVPercent,
				MinDSCR:       o.MinDSCR,
			}
		}
	}
	return p
}
