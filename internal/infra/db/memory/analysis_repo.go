package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

// AnalysisRepository keeps every record in a map guarded by a single mutex.
// Simplicity over throughput: the dataset is bounded to one process lifetime,
// and one lock covering reads and writes gives linearizable visibility of
// full create operations.
type AnalysisRepository struct {
	mu             sync.Mutex
	clock          domain.Clock
	nextAnalysisID domain.AnalysisID
	nextItemID     domain.ItemID
	records        map[domain.AnalysisID]*domain.Analysis
}

// NewAnalysisRepository returns an empty store. A nil clock falls back to
// the system clock.
func NewAnalysisRepository(clock domain.Clock) *AnalysisRepository {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AnalysisRepository{
		clock:          clock,
		nextAnalysisID: 1,
		nextItemID:     1,
		records:        make(map[domain.AnalysisID]*domain.Analysis),
	}
}

func (r *AnalysisRepository) CreateAnalysis(_ context.Context, in domain.NewAnalysis) (*domain.Analysis, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record := &domain.Analysis{
		ID:         r.nextAnalysisID,
		SnapshotID: in.SnapshotID,
		Author:     in.Author,
		Title:      in.Title,
		Notes:      in.Notes,
		CreatedAt:  r.clock.Now().UTC(),
		Items:      make([]domain.Item, 0, len(in.Items)),
	}
	r.nextAnalysisID++

	for _, item := range in.Items {
		record.Items = append(record.Items, domain.Item{
			ID:         r.nextItemID,
			AnalysisID: record.ID,
			Label:      item.Label,
			Score:      item.Score,
			Payload:    item.Payload,
		})
		r.nextItemID++
	}

	r.records[record.ID] = record.Clone()
	return record, nil
}

func (r *AnalysisRepository) GetAnalysis(_ context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: analysis %d", domain.ErrNotFound, id)
	}
	return record.Clone(), nil
}

func (r *AnalysisRepository) ListAnalysis(_ context.Context, snapshotID *int64) ([]*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Analysis, 0, len(r.records))
	for _, record := range r.records {
		if snapshotID != nil && record.SnapshotID != *snapshotID {
			continue
		}
		out = append(out, record.Clone())
	}
	domain.SortAnalyses(out)
	return out, nil
}

func (r *AnalysisRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[domain.AnalysisID]*domain.Analysis)
	r.nextAnalysisID = 1
	r.nextItemID = 1
	return nil
}

func (r *AnalysisRepository) ExportState(_ context.Context) (*domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := &domain.State{
		NextAnalysisID: r.nextAnalysisID,
		NextItemID:     r.nextItemID,
		Analysis:       make([]*domain.Analysis, 0, len(r.records)),
	}
	for _, record := range r.records {
		state.Analysis = append(state.Analysis, record.Clone())
	}
	domain.SortAnalyses(state.Analysis)
	return state, nil
}

func (r *AnalysisRepository) ImportState(_ context.Context, state *domain.State) error {
	if err := domain.ValidateState(state); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := make(map[domain.AnalysisID]*domain.Analysis, len(state.Analysis))
	for _, a := range state.Analysis {
		clone := a.Clone()
		clone.CreatedAt = clone.CreatedAt.UTC()
		if clone.Items == nil {
			clone.Items = make([]domain.Item, 0)
		}
		records[clone.ID] = clone
	}
	r.records = records
	r.nextAnalysisID = state.NextAnalysisID
	r.nextItemID = state.NextItemID
	return nil
}

func (r *AnalysisRepository) Close() error { return nil }

var _ domain.Repository = (*AnalysisRepository)(nil)
