package underwriting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/cache"
	"underwriting-engine/internal/services/catalog"
)

// RunStore persists underwriting runs.
type RunStore interface {
	Save(ctx context.Context, run *models.UnderwritingRun) error
	SaveAll(ctx context.Context, runs []*models.UnderwritingRun) error
	Get(ctx context.Context, id uuid.UUID) (*models.UnderwritingRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.UnderwritingRun, error)
}

// Run listing bounds.
const (
	DefaultRunListLimit = 20
	MaxRunListLimit     = 100
)

// ServiceOptions tune a Service. Zero values pick defaults.
type ServiceOptions struct {
	Concurrency int
	Defaults    DefaultsProvider
	Logger      *zap.Logger
}

// Service wraps the engine with caching, persistence and batching.
type Service struct {
	registry    *catalog.Registry
	engine      *Engine
	store       RunStore
	cache       cache.ResultCache
	concurrency int
	logger      *zap.Logger
}

// BatchItem is the outcome of one deal in a batch. Exactly one of Run and
// Error is set.
type BatchItem struct {
	Index int                     `json:"index"`
	Run   *models.UnderwritingRun `json:"run,omitempty"`
	Error string                  `json:"error,omitempty"`
	err   error
}

// Err returns the underwriting error of a failed item.
func (b *BatchItem) Err() error {
	return b.err
}

// NewService creates a service. resultCache may be nil to disable caching.
func NewService(registry *catalog.Registry, store RunStore, resultCache cache.ResultCache, opts ServiceOptions) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	engineOpts := []Option{WithLogger(opts.Logger)}
	if opts.Defaults != nil {
		engineOpts = append(engineOpts, WithDefaults(opts.Defaults))
	}

	return &Service{
		registry:    registry,
		engine:      NewEngine(registry, engineOpts...),
		store:       store,
		cache:       resultCache,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// Catalog returns the catalog snapshot currently in effect.
func (s *Service) Catalog() *catalog.Catalog {
	return s.registry.Current()
}

// Underwrite runs one deal and stores the run. A deal already underwritten
// against the same catalog version is served from the cache.
func (s *Service) Underwrite(ctx context.Context, in *models.CalculationInputs) (*models.UnderwritingRun, error) {
	run, cached, err := s.compute(ctx, in)
	if err != nil {
		return nil, err
	}
	if cached {
		return run, nil
	}

	if err := s.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}
	s.remember(ctx, run)

	s.logger.Info("Deal underwritten",
		zap.String("run_id", run.ID.String()),
		zap.String("deal", run.DealName),
		zap.String("product", in.Product.String()),
		zap.String("catalog_version", run.CatalogVersion),
	)
	return run, nil
}

// UnderwriteBatch runs deals concurrently, bounded by the configured
// concurrency. Results keep input order; a deal that fails is reported on
// its item and does not stop the others. New runs are stored together.
func (s *Service) UnderwriteBatch(ctx context.Context, inputs []*models.CalculationInputs) ([]*BatchItem, error) {
	startTime := time.Now()
	items := make([]*BatchItem, len(inputs))
	fresh := make([]bool, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, in := range inputs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			item := &BatchItem{Index: i}
			run, cached, err := s.compute(egCtx, in)
			if err != nil {
				item.err = err
				item.Error = err.Error()
			} else {
				item.Run = run
				fresh[i] = !cached
			}
			items[i] = item
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	var runs []*models.UnderwritingRun
	for i, item := range items {
		if fresh[i] {
			runs = append(runs, item.Run)
		}
	}
	if len(runs) > 0 {
		if err := s.store.SaveAll(ctx, runs); err != nil {
			return nil, fmt.Errorf("failed to store batch runs: %w", err)
		}
		for _, run := range runs {
			s.remember(ctx, run)
		}
	}

	s.logger.Info("Batch underwritten",
		zap.Int("deals", len(inputs)),
		zap.Int("new_runs", len(runs)),
		zap.Duration("processing_time", time.Since(startTime)),
	)
	return items, nil
}

// GetRun loads a stored run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*models.UnderwritingRun, error) {
	return s.store.Get(ctx, id)
}

// ListRuns returns the most recent stored runs, newest first. A limit
// below one picks DefaultRunListLimit; larger limits are capped at
// MaxRunListLimit.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*models.UnderwritingRun, error) {
	switch {
	case limit < 1:
		limit = DefaultRunListLimit
	case limit > MaxRunListLimit:
		limit = MaxRunListLimit
	}
	return s.store.ListRecent(ctx, limit)
}

// compute resolves one deal against a single catalog snapshot.
func (s *Service) compute(ctx context.Context, in *models.CalculationInputs) (*models.UnderwritingRun, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if in == nil {
		return nil, false, fmt.Errorf("%w: inputs are nil", models.ErrInvalidInputs)
	}

	snapshot := s.registry.Current()
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode inputs: %w", err)
	}
	key := cache.Key(snapshot.Version(), payload)

	if run, ok := s.recall(ctx, key); ok {
		return run, true, nil
	}

	result, err := s.engine.WithProfiles(snapshot).Assemble(in)
	if err != nil {
		return nil, false, err
	}
	run := models.NewUnderwritingRun(in, result, snapshot.Version())
	return run, false, nil
}

func (s *Service) recall(ctx context.Context, key string) (*models.UnderwritingRun, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var run models.UnderwritingRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		s.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &run, true
}

// remember caches a stored run. Cache failures only cost a recomputation.
func (s *Service) remember(ctx context.Context, run *models.UnderwritingRun) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(run.Inputs)
	if err != nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		s.logger.Warn("Failed to encode run for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cache.Key(run.CatalogVersion, payload), string(data)); err != nil {
		s.logger.Warn("Failed to cache run", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}
