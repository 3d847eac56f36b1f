package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"underwriting-engine/internal/models"
)

const termSheetDir = "../../internal/services/catalog/termsheets"

const dealJSON = `{
	"deal_name": "Maple Court",
	"rent_per_unit": 1500,
	"unit_count": 100,
	"occupancy_percent": 95,
	"purchase_price": 12000000,
	"closing_costs": 120000,
	"ltv_percent": 70,
	"interest_rate_percent": 6,
	"amortization_years": 30,
	"term_years": 10,
	"hold_period_years": 2,
	"market_cap_rate_percent": 6,
	"growth_rates_percent": [3, 3],
	"disposition_cost_percent": 2,
	"product": {"agency": "freddie_mac", "product_type": "conventional"}
}`

const dealYAML = `
- deal_name: Birch Gardens
  rent_per_unit: 1200
  unit_count: 60
  purchase_price: 7000000
  ltv_percent: 65
  interest_rate_percent: 5.5
  amortization_years: 30
  term_years: 7
  hold_period_years: 1
  market_cap_rate_percent: 6.5
  growth_rates_percent: [2]
  disposition_cost_percent: 1.5
- deal_name: Broken
  rent_per_unit: 1200
  unit_count: 60
  purchase_price: 7000000
  ltv_percent: 65
  interest_rate_percent: 5.5
  amortization_years: 30
  term_years: 7
  hold_period_years: 3
  market_cap_rate_percent: 6.5
  growth_rates_percent: [2]
  disposition_cost_percent: 1.5
`

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "DB_PASSWORD", "REDIS_ADDR", "CATALOG_DIR"} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCmd_SingleDealJSON(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "deal.json", dealJSON)

	out, err := execute(t, "run", "--input", path)
	require.NoError(t, err)

	var run models.UnderwritingRun
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "Maple Court", run.DealName)
	assert.Equal(t, models.AgencyFreddieMac, run.Agency)
	require.NotNil(t, run.Result)
	assert.NotNil(t, run.Result.FreddieMac)
	assert.Len(t, run.Result.CashFlows, 2)
}

func TestRunCmd_YAMLBatchReportsFailures(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "deals.yaml", dealYAML)

	out, err := execute(t, "run", "--input", path, "--summary")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 deals failed")
	assert.Contains(t, err.Error(), "deal 2")
	assert.Contains(t, out, "Birch Gardens")
	assert.Contains(t, out, "no agency")
	assert.NotContains(t, out, "Broken")
}

func TestRunCmd_RequiresInput(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "run")

	assert.Error(t, err)
}

func TestProductsCmd(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "products", "--agency", "fannie_mae")
	require.NoError(t, err)

	assert.Contains(t, out, "fannie_mae/conventional")
	assert.Contains(t, out, "fannie_mae/manufactured_housing")
	assert.NotContains(t, out, "freddie_mac/")
	assert.Equal(t, len(models.FannieMaeProducts()), strings.Count(out, "fannie_mae/"))

	_, err = execute(t, "products", "--agency", "ginnie_mae")
	assert.Error(t, err)
}

func TestCatalogValidateCmd(t *testing.T) {
	out, err := execute(t, "catalog", "validate", "--dir", termSheetDir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK ")
	assert.Contains(t, out, "28 products")

	empty := t.TempDir()
	_, err = execute(t, "catalog", "validate", "--dir", empty)
	assert.Error(t, err)
}

func TestCatalogPublishCmd_RequiresBucket(t *testing.T) {
	t.Setenv("CATALOG_S3_BUCKET", "")

	_, err := execute(t, "catalog", "publish", "--dir", termSheetDir)

	assert.ErrorContains(t, err, "--bucket")
}
