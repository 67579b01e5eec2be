package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func openTestRepo(t *testing.T) (*AnalysisRepository, string) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")
	db, err := Connect(ctx, path)
	require.NoError(t, err)
	repo := NewAnalysisRepository(db)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func sampleInput(snapshotID int64) domain.NewAnalysis {
	return domain.NewAnalysis{
		SnapshotID: snapshotID,
		Author:     "alice",
		Title:      "weekly report",
		Notes:      strPtr("all clear"),
		Items: []domain.NewItem{
			{Label: "latency", Score: 3, Payload: map[string]any{"p99_ms": 120.5, "region": "eu"}},
			{Label: "errors", Score: 1},
		},
	}
}

func TestCreateAndGetAnalysis(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	created, err := repo.CreateAnalysis(ctx, sampleInput(7))
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID(1), created.ID)
	require.Len(t, created.Items, 2)
	assert.Equal(t, domain.ItemID(1), created.Items[0].ID)
	assert.Equal(t, domain.ItemID(2), created.Items[1].ID)

	got, err := repo.GetAnalysis(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(7), got.SnapshotID)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "weekly report", got.Title)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "all clear", *got.Notes)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	// payload survives the JSON round trip through the TEXT column
	require.Len(t, got.Items, 2)
	assert.Equal(t, "latency", got.Items[0].Label)
	assert.Equal(t, 120.5, got.Items[0].Payload["p99_ms"])
	assert.Equal(t, "eu", got.Items[0].Payload["region"])
	assert.Nil(t, got.Items[1].Payload)
}

func TestGetAnalysisNotFound(t *testing.T) {
	repo, _ := openTestRepo(t)

	_, err := repo.GetAnalysis(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAnalysisValidation(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	_, err := repo.CreateAnalysis(ctx, domain.NewAnalysis{SnapshotID: 1, Author: " ", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// rejected create consumed no ids
	created, err := repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID(1), created.ID)
	assert.Equal(t, domain.ItemID(1), created.Items[0].ID)
}

func TestListAnalysisOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	// equal timestamps exercise the id tie-break, so seed via import
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &domain.State{
		NextAnalysisID: 4,
		NextItemID:     3,
		Analysis: []*domain.Analysis{
			{ID: 1, SnapshotID: 1, Author: "a", Title: "oldest", CreatedAt: now.Add(-time.Minute),
				Items: []domain.Item{{ID: 1, AnalysisID: 1, Label: "x", Score: 1}}},
			{ID: 2, SnapshotID: 2, Author: "b", Title: "tied-low", CreatedAt: now,
				Items: []domain.Item{{ID: 2, AnalysisID: 2, Label: "y", Score: 2}}},
			{ID: 3, SnapshotID: 1, Author: "c", Title: "tied-high", CreatedAt: now},
		},
	}
	require.NoError(t, repo.ImportState(ctx, state))

	all, err := repo.ListAnalysis(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.AnalysisID(3), all[0].ID)
	assert.Equal(t, domain.AnalysisID(2), all[1].ID)
	assert.Equal(t, domain.AnalysisID(1), all[2].ID)

	filtered, err := repo.ListAnalysis(ctx, int64Ptr(1))
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, domain.AnalysisID(3), filtered[0].ID)
	assert.Equal(t, domain.AnalysisID(1), filtered[1].ID)

	empty, err := repo.ListAnalysis(ctx, int64Ptr(99))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestItemsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	in := domain.NewAnalysis{
		SnapshotID: 1, Author: "alice", Title: "ordered",
		Items: []domain.NewItem{
			{Label: "first", Score: 1},
			{Label: "second", Score: 2},
			{Label: "third", Score: 3},
		},
	}
	created, err := repo.CreateAnalysis(ctx, in)
	require.NoError(t, err)

	got, err := repo.GetAnalysis(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "first", got.Items[0].Label)
	assert.Equal(t, "second", got.Items[1].Label)
	assert.Equal(t, "third", got.Items[2].Label)
}

func TestClearResetsCounters(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	_, err := repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)
	_, err = repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)

	require.NoError(t, repo.Clear(ctx))

	records, err := repo.ListAnalysis(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	created, err := repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID(1), created.ID)
	assert.Equal(t, domain.ItemID(1), created.Items[0].ID)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := openTestRepo(t)

	_, err := src.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)
	_, err = src.CreateAnalysis(ctx, sampleInput(2))
	require.NoError(t, err)

	state, err := src.ExportState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID(3), state.NextAnalysisID)
	assert.Equal(t, domain.ItemID(5), state.NextItemID)
	require.Len(t, state.Analysis, 2)

	dst, _ := openTestRepo(t)
	require.NoError(t, dst.ImportState(ctx, state))

	srcList, err := src.ListAnalysis(ctx, nil)
	require.NoError(t, err)
	dstList, err := dst.ListAnalysis(ctx, nil)
	require.NoError(t, err)
	require.Len(t, dstList, 2)
	for i := range srcList {
		assert.Equal(t, srcList[i].ID, dstList[i].ID)
		assert.True(t, srcList[i].CreatedAt.Equal(dstList[i].CreatedAt))
		assert.Equal(t, srcList[i].Items, dstList[i].Items)
	}

	created, err := dst.CreateAnalysis(ctx, sampleInput(3))
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID(3), created.ID)
	assert.Equal(t, domain.ItemID(5), created.Items[0].ID)
}

func TestImportStateRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestRepo(t)

	existing, err := repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)

	bad := &domain.State{
		NextAnalysisID: 2,
		NextItemID:     2,
		Analysis: []*domain.Analysis{
			{ID: 1, Author: "x", Title: "y", CreatedAt: time.Now().UTC(),
				Items: []domain.Item{{ID: 1, AnalysisID: 99, Label: "z", Score: 1}}},
		},
	}
	assert.ErrorIs(t, repo.ImportState(ctx, bad), domain.ErrInvalidState)

	got, err := repo.GetAnalysis(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.Title, got.Title)
}

func TestReopenPersistsDataAndCounters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")

	db, err := Connect(ctx, path)
	require.NoError(t, err)
	repo := NewAnalysisRepository(db)

	first, err := repo.CreateAnalysis(ctx, sampleInput(1))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	db, err = Connect(ctx, path)
	require.NoError(t, err)
	reopened := NewAnalysisRepository(db)
	defer reopened.Close()

	got, err := reopened.GetAnalysis(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Title, got.Title)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	// counters continue where the previous process stopped
	second, err := reopened.CreateAnalysis(ctx, sampleInput(2))
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
	assert.Equal(t, first.Items[1].ID+1, second.Items[0].ID)
}
