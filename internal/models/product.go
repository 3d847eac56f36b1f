// Package models defines the data structures for the underwriting engine.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Agency identifies a secondary-market agency whose loan products the engine certifies.
type Agency string

const (
	AgencyNone       Agency = ""
	AgencyFannieMae  Agency = "fannie_mae"
	AgencyFreddieMac Agency = "freddie_mac"
)

// ValidAgencies returns the agencies that publish product term sheets.
func ValidAgencies() []Agency {
	return []Agency{AgencyFannieMae, AgencyFreddieMac}
}

// IsValid checks if the agency is one of the known agencies.
func (a Agency) IsValid() bool {
	for _, valid := range ValidAgencies() {
		if a == valid {
			return true
		}
	}
	return false
}

// FannieMaeProduct is a Fannie Mae multifamily loan product type.
type FannieMaeProduct string

const (
	FannieMaeConventional        FannieMaeProduct = "conventional"
	FannieMaeSmallLoan           FannieMaeProduct = "small_loan"
	FannieMaeAffordableHousing   FannieMaeProduct = "affordable_housing"
	FannieMaeGreenRewards        FannieMaeProduct = "green_rewards"
	FannieMaeSeniorsHousing      FannieMaeProduct = "seniors_housing"
	FannieMaeStudentHousing      FannieMaeProduct = "student_housing"
	FannieMaeManufacturedHousing FannieMaeProduct = "manufactured_housing"
	FannieMaeCooperative         FannieMaeProduct = "cooperative"
	FannieMaeARM76               FannieMaeProduct = "arm_7_6"
	FannieMaeStructuredARM       FannieMaeProduct = "structured_arm"
	FannieMaeSupplemental        FannieMaeProduct = "supplemental"
	FannieMaeNearStabilization   FannieMaeProduct = "near_stabilization"
	FannieMaeROAR                FannieMaeProduct = "roar"
	FannieMaeCreditFacility      FannieMaeProduct = "credit_facility"
)

// FannieMaeProducts returns every Fannie Mae product type the engine supports.
func FannieMaeProducts() []FannieMaeProduct {
	return []FannieMaeProduct{
		FannieMaeConventional,
		FannieMaeSmallLoan,
		FannieMaeAffordableHousing,
		FannieMaeGreenRewards,
		FannieMaeSeniorsHousing,
		FannieMaeStudentHousing,
		FannieMaeManufacturedHousing,
		FannieMaeCooperative,
		FannieMaeARM76,
		FannieMaeStructuredARM,
		FannieMaeSupplemental,
		FannieMaeNearStabilization,
		FannieMaeROAR,
		FannieMaeCreditFacility,
	}
}

// IsValid checks if the product type is a known Fannie Mae product.
func (p FannieMaeProduct) IsValid() bool {
	for _, valid := range FannieMaeProducts() {
		if p == valid {
			return true
		}
	}
	return false
}

// FreddieMacProduct is a Freddie Mac Optigo loan product type.
type FreddieMacProduct string

const (
	FreddieMacConventional          FreddieMacProduct = "conventional"
	FreddieMacSmallBalance          FreddieMacProduct = "small_balance"
	FreddieMacTargetedAffordable    FreddieMacProduct = "targeted_affordable"
	FreddieMacGreenAdvantage        FreddieMacProduct = "green_advantage"
	FreddieMacSeniorsHousing        FreddieMacProduct = "seniors_housing"
	FreddieMacStudentHousing        FreddieMacProduct = "student_housing"
	FreddieMacManufacturedHousing   FreddieMacProduct = "manufactured_housing"
	FreddieMacCooperative           FreddieMacProduct = "cooperative"
	FreddieMacFloatingRate          FreddieMacProduct = "floating_rate"
	FreddieMacCappedARM             FreddieMacProduct = "capped_arm"
	FreddieMacSupplemental          FreddieMacProduct = "supplemental"
	FreddieMacLeaseUp               FreddieMacProduct = "lease_up"
	FreddieMacValueAdd              FreddieMacProduct = "value_add"
	FreddieMacWorkforcePreservation FreddieMacProduct = "workforce_preservation"
)

// FreddieMacProducts returns every Freddie Mac product type the engine supports.
func FreddieMacProducts() []FreddieMacProduct {
	return []FreddieMacProduct{
		FreddieMacConventional,
		FreddieMacSmallBalance,
		FreddieMacTargetedAffordable,
		FreddieMacGreenAdvantage,
		FreddieMacSeniorsHousing,
		FreddieMacStudentHousing,
		FreddieMacManufacturedHousing,
		FreddieMacCooperative,
		FreddieMacFloatingRate,
		FreddieMacCappedARM,
		FreddieMacSupplemental,
		FreddieMacLeaseUp,
		FreddieMacValueAdd,
		FreddieMacWorkforcePreservation,
	}
}

// IsValid checks if the product type is a known Freddie Mac product.
func (p FreddieMacProduct) IsValid() bool {
	for _, valid := range FreddieMacProducts() {
		if p == valid {
			return true
		}
	}
	return false
}

// ProductKey identifies one entry of the product profile catalog.
type ProductKey struct {
	Agency      Agency `json:"agency" yaml:"agency"`
	ProductType string `json:"product_type" yaml:"product_type"`
}

// String renders the key as agency/product.
func (k ProductKey) String() string {
	return string(k.Agency) + "/" + k.ProductType
}

// AllProductKeys returns the catalog keys of every supported product across both agencies.
func AllProductKeys() []ProductKey {
	keys := make([]ProductKey, 0, len(FannieMaeProducts())+len(FreddieMacProducts()))
	for _, p := range FannieMaeProducts() {
		keys = append(keys, ProductKey{Agency: AgencyFannieMae, ProductType: string(p)})
	}
	for _, p := range FreddieMacProducts() {
		keys = append(keys, ProductKey{Agency: AgencyFreddieMac, ProductType: string(p)})
	}
	return keys
}

// ProductSelection is the agency product chosen for a deal. The zero value is
// unselected; a selection can only ever name one agency.
type ProductSelection struct {
	agency  Agency
	product string
}

// Unselected returns a selection that falls back to protocol defaults.
func Unselected() ProductSelection {
	return ProductSelection{}
}

// SelectFannieMae selects a Fannie Mae product.
func SelectFannieMae(p FannieMaeProduct) ProductSelection {
	return ProductSelection{agency: AgencyFannieMae, product: string(p)}
}

// SelectFreddieMac selects a Freddie Mac product.
func SelectFreddieMac(p FreddieMacProduct) ProductSelection {
	return ProductSelection{agency: AgencyFreddieMac, product: string(p)}
}

// Agency returns the selected agency, or AgencyNone.
func (s ProductSelection) Agency() Agency {
	return s.agency
}

// IsSelected reports whether an agency product was chosen.
func (s ProductSelection) IsSelected() bool {
	return s.agency != AgencyNone
}

// FannieMae returns the Fannie Mae product when one is selected.
func (s ProductSelection) FannieMae() (FannieMaeProduct, bool) {
	if s.agency != AgencyFannieMae {
		return "", false
	}
	return FannieMaeProduct(s.product), true
}

// FreddieMac returns the Freddie Mac product when one is selected.
func (s ProductSelection) FreddieMac() (FreddieMacProduct, bool) {
	if s.agency != AgencyFreddieMac {
		return "", false
	}
	return FreddieMacProduct(s.product), true
}

// Key returns the catalog key of the selection.
func (s ProductSelection) Key() ProductKey {
	return ProductKey{Agency: s.agency, ProductType: s.product}
}

// String renders the selection for logs.
func (s ProductSelection) String() string {
	if !s.IsSelected() {
		return "unselected"
	}
	return s.Key().String()
}

// ParseProductSelection builds a selection from its agency and product strings.
// An empty agency yields an unselected value.
func ParseProductSelection(agency, productType string) (ProductSelection, error) {
	a := Agency(strings.ToLower(strings.TrimSpace(agency)))
	pt := strings.ToLower(strings.TrimSpace(productType))

	switch a {
	case AgencyNone:
		if pt != "" {
			return ProductSelection{}, fmt.Errorf("%w: product %q has no agency", ErrInvalidProductSelection, pt)
		}
		return Unselected(), nil
	case AgencyFannieMae:
		p := FannieMaeProduct(pt)
		if !p.IsValid() {
			return ProductSelection{}, fmt.Errorf("%w: unknown fannie_mae product %q", ErrInvalidProductSelection, pt)
		}
		return SelectFannieMae(p), nil
	case AgencyFreddieMac:
		p := FreddieMacProduct(pt)
		if !p.IsValid() {
			return ProductSelection{}, fmt.Errorf("%w: unknown freddie_mac product %q", ErrInvalidProductSelection, pt)
		}
		return SelectFreddieMac(p), nil
	default:
		return ProductSelection{}, fmt.Errorf("%w: unknown agency %q", ErrInvalidProductSelection, agency)
	}
}

type productSelectionJSON struct {
	Agency      Agency `json:"agency"`
	ProductType string `json:"product_type"`
}

// MarshalJSON encodes the selection; unselected encodes as null.
func (s ProductSelection) MarshalJSON() ([]byte, error) {
	if !s.IsSelected() {
		return []byte("null"), nil
	}
	return json.Marshal(productSelectionJSON{Agency: s.agency, ProductType: s.product})
}

// UnmarshalJSON decodes and validates the selection.
func (s *ProductSelection) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Unselected()
		return nil
	}
	var raw productSelectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode product selection: %w", err)
	}
	parsed, err := ParseProductSelection(string(raw.Agency), raw.ProductType)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PropertyType is the asset class used to resolve protocol defaults.
type PropertyType string

const (
	PropertyTypeMultifamily         PropertyType = "multifamily"
	PropertyTypeAffordable          PropertyType = "affordable"
	PropertyTypeSeniorsHousing      PropertyType = "seniors_housing"
	PropertyTypeStudentHousing      PropertyType = "student_housing"
	PropertyTypeManufacturedHousing PropertyType = "manufactured_housing"
	PropertyTypeCooperative         PropertyType = "cooperative"
	PropertyTypeMixedUse            PropertyType = "mixed_use"
)

// ValidPropertyTypes returns all valid property type values.
func ValidPropertyTypes() []PropertyType {
	return []PropertyType{
		PropertyTypeMultifamily,
		PropertyTypeAffordable,
		PropertyTypeSeniorsHousing,
		PropertyTypeStudentHousing,
		PropertyTypeManufacturedHousing,
		PropertyTypeCooperative,
		PropertyTypeMixedUse,
	}
}

// IsValid checks if the property type is valid.
func (p PropertyType) IsValid() bool {
	for _, valid := range ValidPropertyTypes() {
		if p == valid {
			return true
		}
	}
	return false
}

// NormalizePropertyType converts common spellings to a PropertyType.
func NormalizePropertyType(value string) PropertyType {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	aliases := map[string]PropertyType{
		"":                     PropertyTypeMultifamily,
		"multifamily":          PropertyTypeMultifamily,
		"apartment":            PropertyTypeMultifamily,
		"apartments":           PropertyTypeMultifamily,
		"affordable":           PropertyTypeAffordable,
		"lihtc":                PropertyTypeAffordable,
		"seniors":              PropertyTypeSeniorsHousing,
		"seniors_housing":      PropertyTypeSeniorsHousing,
		"senior_living":        PropertyTypeSeniorsHousing,
		"assisted_living":      PropertyTypeSeniorsHousing,
		"student":              PropertyTypeStudentHousing,
		"student_housing":      PropertyTypeStudentHousing,
		"manufactured_housing": PropertyTypeManufacturedHousing,
		"mhc":                  PropertyTypeManufacturedHousing,
		"mobile_home_park":     PropertyTypeManufacturedHousing,
		"cooperative":          PropertyTypeCooperative,
		"coop":                 PropertyTypeCooperative,
		"co_op":                PropertyTypeCooperative,
		"mixed_use":            PropertyTypeMixedUse,
	}
	if mapped, ok := aliases[normalized]; ok {
		return mapped
	}
	return PropertyType(normalized)
}

// MarketTier classifies the market of a small balance loan.
type MarketTier string

const (
	MarketTierTop       MarketTier = "top"
	MarketTierStandard  MarketTier = "standard"
	MarketTierSmall     MarketTier = "small"
	MarketTierVerySmall MarketTier = "very_small"
)

// ValidMarketTiers returns the market tiers in descending market size.
func ValidMarketTiers() []MarketTier {
	return []MarketTier{MarketTierTop, MarketTierStandard, MarketTierSmall, MarketTierVerySmall}
}

// IsValid checks if the market tier is valid.
func (t MarketTier) IsValid() bool {
	for _, valid := range ValidMarketTiers() {
		if t == valid {
			return true
		}
	}
	return false
}
