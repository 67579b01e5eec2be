package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

// Service implements use-cases untuk snapshot analyses.
// It delegates verbatim to the bound Repository and is safe for concurrent
// use (the repository serializes its own mutations).
type Service struct {
	Repo    domain.Repository
	Archive domain.StateArchive // optional; nil disables backup use-cases
}

func NewService(repo domain.Repository, archive domain.StateArchive) *Service {
	return &Service{Repo: repo, Archive: archive}
}

// SaveAnalysis persists one analysis with its items for a snapshot.
func (s *Service) SaveAnalysis(ctx context.Context, in domain.NewAnalysis) (*domain.Analysis, error) {
	return s.Repo.CreateAnalysis(ctx, in)
}

// ListSnapshotAnalysis returns analyses for one snapshot, or all of them
// when snapshotID is nil.
func (s *Service) ListSnapshotAnalysis(ctx context.Context, snapshotID *int64) ([]*domain.Analysis, error) {
	return s.Repo.ListAnalysis(ctx, snapshotID)
}

func (s *Service) GetAnalysis(ctx context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	return s.Repo.GetAnalysis(ctx, id)
}

func (s *Service) Clear(ctx context.Context) error {
	return s.Repo.Clear(ctx)
}

func (s *Service) ExportState(ctx context.Context) (*domain.State, error) {
	return s.Repo.ExportState(ctx)
}

func (s *Service) ImportState(ctx context.Context, state *domain.State) error {
	return s.Repo.ImportState(ctx, state)
}

// BackupState exports the store and uploads it to the archive. An empty key
// gets a generated one (timestamp plus random suffix so concurrent backups
// never collide). Returns the object key and its URL.
func (s *Service) BackupState(ctx context.Context, key string) (string, string, error) {
	if s.Archive == nil {
		return "", "", fmt.Errorf("state archive not configured")
	}
	if key == "" {
		key = fmt.Sprintf("state/%s-%s.json", time.Now().UTC().Format("20060102T150405Z"), uuid.New().String())
	}
	state, err := s.Repo.ExportState(ctx)
	if err != nil {
		return "", "", err
	}
	url, err := s.Archive.UploadState(ctx, key, state)
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}

// RestoreState downloads an archived state and imports it, replacing the
// whole store.
func (s *Service) RestoreState(ctx context.Context, key string) error {
	if s.Archive == nil {
		return fmt.Errorf("state archive not configured")
	}
	state, err := s.Archive.DownloadState(ctx, key)
	if err != nil {
		return err
	}
	return s.Repo.ImportState(ctx, state)
}
