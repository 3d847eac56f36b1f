package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"underwriting-engine/internal/models"
)

// RunsSchema creates the table underwriting runs are stored in.
const RunsSchema = `
CREATE TABLE IF NOT EXISTS underwriting_runs (
	id               UUID PRIMARY KEY,
	deal_name        TEXT NOT NULL DEFAULT '',
	agency           TEXT NOT NULL DEFAULT '',
	product_type     TEXT NOT NULL DEFAULT '',
	threshold_source TEXT NOT NULL,
	overall_pass     BOOLEAN,
	catalog_version  TEXT NOT NULL,
	inputs           JSONB NOT NULL,
	result           JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_underwriting_runs_product ON underwriting_runs (agency, product_type);
CREATE INDEX IF NOT EXISTS idx_underwriting_runs_created_at ON underwriting_runs (created_at DESC);`

const insertRunSQL = `
	INSERT INTO underwriting_runs (
		id, deal_name, agency, product_type, threshold_source,
		overall_pass, catalog_version, inputs, result, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const selectRunSQL = `
	SELECT id, deal_name, agency, product_type, threshold_source,
		overall_pass, catalog_version, inputs, result, created_at
	FROM underwriting_runs`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunRepository handles underwriting run database operations.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the runs table if it is missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, RunsSchema); err != nil {
		return fmt.Errorf("failed to create runs schema: %w", err)
	}
	return nil
}

// Save inserts a run. Runs are immutable; saving an existing id fails.
func (r *RunRepository) Save(ctx context.Context, run *models.UnderwritingRun) error {
	return insertRun(ctx, r.db.pool, run)
}

// SaveAll inserts runs in one transaction; either every run is stored or none is.
func (r *RunRepository) SaveAll(ctx context.Context, runs []*models.UnderwritingRun) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		for _, run := range runs {
			if err := insertRun(ctx, tx, run); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRun(ctx context.Context, db execer, run *models.UnderwritingRun) error {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode run inputs: %w", err)
	}
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	_, err = db.Exec(ctx, insertRunSQL,
		run.ID,
		run.DealName,
		string(run.Agency),
		run.ProductType,
		string(run.ThresholdSource),
		run.OverallPass,
		run.CatalogVersion,
		inputs,
		result,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save underwriting run %s: %w", run.ID, err)
	}
	return nil
}

// Get retrieves a run by id.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*models.UnderwritingRun, error) {
	run, err := scanRun(r.db.pool.QueryRow(ctx, selectRunSQL+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get underwriting run: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*models.UnderwritingRun, error) {
	rows, err := r.db.pool.Query(ctx, selectRunSQL+" ORDER BY created_at DESC, id LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list underwriting runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.UnderwritingRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan underwriting run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list underwriting runs: %w", err)
	}
	return runs, nil
}

// Count returns the number of stored runs.
func (r *RunRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM underwriting_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count underwriting runs: %w", err)
	}
	return n, nil
}

func scanRun(row pgx.Row) (*models.UnderwritingRun, error) {
	var run models.UnderwritingRun
	var agency, source string
	var inputs, result []byte

	err := row.Scan(
		&run.ID,
		&run.DealName,
		&agency,
		&run.ProductType,
		&source,
		&run.OverallPass,
		&run.CatalogVersion,
		&inputs,
		&result,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Agency = models.Agency(agency)
	run.ThresholdSource = models.ThresholdSource(source)
	if err := json.Unmarshal(inputs, &run.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode run inputs: %w", err)
	}
	if err := json.Unmarshal(result, &run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	return &run, nil
}

// MemoryRunRepository keeps runs in process memory. It backs local runs
// without a database and tests.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.UnderwritingRun
}

// NewMemoryRunRepository creates an empty in-memory run repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[uuid.UUID]*models.UnderwritingRun)}
}

// Save stores the run in memory.
func (m *MemoryRunRepository) Save(_ context.Context, run *models.UnderwritingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("failed to save underwriting run: duplicate id %s", run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

// SaveAll stores every run or, on a duplicate id, none of them.
func (m *MemoryRunRepository) SaveAll(_ context.Context, runs []*models.UnderwritingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range runs {
		if _, exists := m.runs[run.ID]; exists {
			return fmt.Errorf("failed to save underwriting run: duplicate id %s", run.ID)
		}
	}
	for _, run := range runs {
		m.runs[run.ID] = run
	}
	return nil
}

// Get retrieves a run by id.
func (m *MemoryRunRepository) Get(_ context.Context, id uuid.UUID) (*models.UnderwritingRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (m *MemoryRunRepository) ListRecent(_ context.Context, limit int) ([]*models.UnderwritingRun, error) {
	m.mu.RLock()
	runs := make([]*models.UnderwritingRun, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID.String() < runs[j].ID.String()
	})
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Len returns the number of stored runs.
func (m *MemoryRunRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
