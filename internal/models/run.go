package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a stored run does not exist.
var ErrRunNotFound = errors.New("underwriting run not found")

// UnderwritingRun is one persisted Assemble call: the inputs, the result and
// the catalog version the result was computed against.
type UnderwritingRun struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	DealName        string             `json:"deal_name,omitempty" db:"deal_name"`
	Agency          Agency             `json:"agency,omitempty" db:"agency"`
	ProductType     string             `json:"product_type,omitempty" db:"product_type"`
	ThresholdSource ThresholdSource    `json:"threshold_source" db:"threshold_source"`
	OverallPass     *bool              `json:"overall_pass,omitempty" db:"overall_pass"`
	CatalogVersion  string             `json:"catalog_version" db:"catalog_version"`
	Inputs          *CalculationInputs `json:"inputs" db:"inputs"`
	Result          *CalculationResult `json:"result" db:"result"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// NewUnderwritingRun wraps a finished calculation for storage.
func NewUnderwritingRun(in *CalculationInputs, result *CalculationResult, catalogVersion string) *UnderwritingRun {
	run := &UnderwritingRun{
		ID:              uuid.New(),
		DealName:        in.DealName,
		Agency:          in.Product.Agency(),
		ProductType:     in.Product.Key().ProductType,
		ThresholdSource: result.ThresholdSource,
		CatalogVersion:  catalogVersion,
		Inputs:          in,
		Result:          result,
		CreatedAt:       time.Now().UTC(),
	}
	if cr := result.Compliance(); cr != nil {
		pass := cr.OverallPass
		run.OverallPass = &pass
	}
	return run
}
