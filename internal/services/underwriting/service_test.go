package underwriting_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/cache"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/database"
	"underwriting-engine/internal/services/underwriting"
)

type serviceFixture struct {
	service  *underwriting.Service
	registry *catalog.Registry
	runs     *database.MemoryRunRepository
	cache    *cache.MemoryCache
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	c, err := catalog.LoadEmbedded()
	require.NoError(t, err)

	f := &serviceFixture{
		registry: catalog.NewRegistry(c),
		runs:     database.NewMemoryRunRepository(),
		cache:    cache.NewMemoryCache(),
	}
	f.service = underwriting.NewService(f.registry, f.runs, f.cache, underwriting.ServiceOptions{Concurrency: 4})
	return f
}

func TestService_UnderwriteStoresAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	deal := sampleDeal(models.SelectFannieMae(models.FannieMaeConventional))

	first, err := f.service.Underwrite(ctx, deal)
	require.NoError(t, err)
	assert.Equal(t, f.registry.Version(), first.CatalogVersion)
	assert.Equal(t, models.AgencyFannieMae, first.Agency)
	require.NotNil(t, first.OverallPass)
	assert.Equal(t, 1, f.runs.Len())
	assert.Equal(t, 1, f.cache.Len())

	second, err := f.service.Underwrite(ctx, deal)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "identical deal should be served from cache")
	assert.Equal(t, 1, f.runs.Len())

	stored, err := f.service.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}

func TestService_CatalogSwapInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	deal := sampleDeal(models.SelectFreddieMac(models.FreddieMacConventional))

	first, err := f.service.Underwrite(ctx, deal)
	require.NoError(t, err)

	current := f.registry.Current()
	profiles := append(current.Profiles(models.AgencyFannieMae), current.Profiles(models.AgencyFreddieMac)...)
	next, err := catalog.New("reloaded", profiles)
	require.NoError(t, err)
	f.registry.Swap(next)

	second, err := f.service.Underwrite(ctx, deal)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "reloaded", second.CatalogVersion)
	assert.Equal(t, 2, f.runs.Len())
}

func TestService_UnderwriteWithoutCache(t *testing.T) {
	ctx := context.Background()
	runs := database.NewMemoryRunRepository()
	service := underwriting.NewService(catalog.NewRegistry(catalog.MustLoadEmbedded()), runs, nil, underwriting.ServiceOptions{})
	deal := sampleDeal(models.Unselected())

	first, err := service.Underwrite(ctx, deal)
	require.NoError(t, err)
	second, err := service.Underwrite(ctx, deal)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Nil(t, first.OverallPass)
	assert.Equal(t, 2, runs.Len())
}

func TestService_UnderwriteBatchKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := newServiceFixture(t)

	invalid := sampleDeal(models.Unselected())
	invalid.HoldPeriodYears = 0
	inputs := []*models.CalculationInputs{
		sampleDeal(models.SelectFannieMae(models.FannieMaeConventional)),
		invalid,
		sampleDeal(models.SelectFreddieMac(models.FreddieMacSmallBalance)),
		sampleDeal(models.Unselected()),
	}
	inputs[0].DealName = "first"
	inputs[2].DealName = "third"
	inputs[3].DealName = "fourth"

	items, err := f.service.UnderwriteBatch(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, items, len(inputs))

	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, "first", items[0].Run.DealName)
	assert.Nil(t, items[1].Run)
	assert.NotEmpty(t, items[1].Error)
	assert.ErrorIs(t, items[1].Err(), models.ErrInvalidInputs)
	assert.Equal(t, "third", items[2].Run.DealName)
	assert.Equal(t, models.AgencyFreddieMac, items[2].Run.Agency)
	assert.Equal(t, "fourth", items[3].Run.DealName)
	assert.Equal(t, 3, f.runs.Len())

	// A repeated batch is served entirely from cache.
	again, err := f.service.UnderwriteBatch(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, items[0].Run.ID, again[0].Run.ID)
	assert.Equal(t, 3, f.runs.Len())
}

func TestService_UnderwriteBatchCancelled(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.UnderwriteBatch(ctx, []*models.CalculationInputs{sampleDeal(models.Unselected())})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.runs.Len())
}

func TestService_GetRunMissing(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.GetRun(context.Background(), uuid.New())

	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

type listRecorder struct {
	*database.MemoryRunRepository
	limits []int
}

func (l *listRecorder) ListRecent(ctx context.Context, limit int) ([]*models.UnderwritingRun, error) {
	l.limits = append(l.limits, limit)
	return l.MemoryRunRepository.ListRecent(ctx, limit)
}

func TestService_ListRuns(t *testing.T) {
	ctx := context.Background()
	registry := catalog.NewRegistry(catalog.MustLoadEmbedded())
	store := &listRecorder{MemoryRunRepository: database.NewMemoryRunRepository()}
	service := underwriting.NewService(registry, store, nil, underwriting.ServiceOptions{})

	for _, name := range []string{"Alder", "Birch", "Cedar"} {
		deal := sampleDeal(models.Unselected())
		deal.DealName = name
		_, err := service.Underwrite(ctx, deal)
		require.NoError(t, err)
	}

	runs, err := service.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = service.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = service.ListRuns(ctx, 5000)
	require.NoError(t, err)

	assert.Equal(t, []int{underwriting.DefaultRunListLimit, 2, underwriting.MaxRunListLimit}, store.limits)
}
