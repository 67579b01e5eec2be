package analyses

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewAnalysisNormalize(t *testing.T) {
	in := NewAnalysis{
		SnapshotID: 1,
		Author:     "  alice  ",
		Title:      "\tweekly report\n",
		Notes:      strPtr("  looks fine  "),
		Items: []NewItem{
			{Label: "  finding-a ", Score: 3},
		},
	}

	in.Normalize()

	assert.Equal(t, "alice", in.Author)
	assert.Equal(t, "weekly report", in.Title)
	require.NotNil(t, in.Notes)
	assert.Equal(t, "looks fine", *in.Notes)
	assert.Equal(t, "finding-a", in.Items[0].Label)
}

func TestNewAnalysisValidate(t *testing.T) {
	valid := func() NewAnalysis {
		return NewAnalysis{
			SnapshotID: 7,
			Author:     "alice",
			Title:      "report",
			Items: []NewItem{
				{Label: "a", Score: 1, Payload: map[string]any{"k": "v"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*NewAnalysis)
		wantErr error
	}{
		{
			name:    "valid input",
			mutate:  func(n *NewAnalysis) {},
			wantErr: nil,
		},
		{
			name:    "no items is allowed",
			mutate:  func(n *NewAnalysis) { n.Items = nil },
			wantErr: nil,
		},
		{
			name:    "nil notes is allowed",
			mutate:  func(n *NewAnalysis) { n.Notes = nil },
			wantErr: nil,
		},
		{
			name:    "empty author",
			mutate:  func(n *NewAnalysis) { n.Author = "" },
			wantErr: ErrValidation,
		},
		{
			name:    "empty title",
			mutate:  func(n *NewAnalysis) { n.Title = "" },
			wantErr: ErrValidation,
		},
		{
			name:    "empty item label",
			mutate:  func(n *NewAnalysis) { n.Items[0].Label = "" },
			wantErr: ErrValidation,
		},
		{
			name: "payload not serializable",
			mutate: func(n *NewAnalysis) {
				n.Items[0].Payload = map[string]any{"bad": math.Inf(1)}
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	valid := func() *State {
		return &State{
			NextAnalysisID: 3,
			NextItemID:     4,
			Analysis: []*Analysis{
				{
					ID: 1, SnapshotID: 1, Author: "alice", Title: "first", CreatedAt: now,
					Items: []Item{
						{ID: 1, AnalysisID: 1, Label: "a", Score: 1},
						{ID: 2, AnalysisID: 1, Label: "b", Score: 2},
					},
				},
				{
					ID: 2, SnapshotID: 2, Author: "bob", Title: "second", CreatedAt: now.Add(time.Minute),
					Items: []Item{
						{ID: 3, AnalysisID: 2, Label: "c", Score: 3},
					},
				},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*State) *State
		ok     bool
	}{
		{"valid state", func(s *State) *State { return s }, true},
		{"empty state", func(s *State) *State {
			return &State{NextAnalysisID: 1, NextItemID: 1}
		}, true},
		{"nil state", func(s *State) *State { return nil }, false},
		{"zero next_analysis_id", func(s *State) *State { s.NextAnalysisID = 0; return s }, false},
		{"zero next_item_id", func(s *State) *State { s.NextItemID = 0; return s }, false},
		{"null analysis entry", func(s *State) *State { s.Analysis[0] = nil; return s }, false},
		{"non-positive analysis id", func(s *State) *State { s.Analysis[0].ID = 0; return s }, false},
		{"duplicate analysis id", func(s *State) *State { s.Analysis[1].ID = 1; return s }, false},
		{"analysis id not below counter", func(s *State) *State { s.Analysis[1].ID = 3; return s }, false},
		{"blank author", func(s *State) *State { s.Analysis[0].Author = "  "; return s }, false},
		{"blank title", func(s *State) *State { s.Analysis[0].Title = ""; return s }, false},
		{"zero created_at", func(s *State) *State { s.Analysis[0].CreatedAt = time.Time{}; return s }, false},
		{"non-positive item id", func(s *State) *State { s.Analysis[0].Items[0].ID = -1; return s }, false},
		{"duplicate item id", func(s *State) *State { s.Analysis[1].Items[0].ID = 2; return s }, false},
		{"item id not below counter", func(s *State) *State { s.Analysis[1].Items[0].ID = 4; return s }, false},
		{"item under wrong analysis", func(s *State) *State { s.Analysis[0].Items[1].AnalysisID = 2; return s }, false},
		{"blank item label", func(s *State) *State { s.Analysis[1].Items[0].Label = " "; return s }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState(tt.mutate(valid()))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidState)
			}
		})
	}
}

func TestSortAnalyses(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*Analysis{
		{ID: 1, CreatedAt: base},
		{ID: 3, CreatedAt: base.Add(time.Minute)},
		{ID: 2, CreatedAt: base.Add(time.Minute)}, // same instant as id 3
		{ID: 4, CreatedAt: base.Add(-time.Minute)},
	}

	SortAnalyses(records)

	got := make([]AnalysisID, len(records))
	for i, r := range records {
		got[i] = r.ID
	}
	// newest first, ties broken by higher id first
	assert.Equal(t, []AnalysisID{3, 2, 1, 4}, got)
}

func TestAnalysisCloneIsDeep(t *testing.T) {
	orig := &Analysis{
		ID:         1,
		SnapshotID: 1,
		Author:     "alice",
		Title:      "report",
		Notes:      strPtr("note"),
		CreatedAt:  time.Now().UTC(),
		Items: []Item{
			{ID: 1, AnalysisID: 1, Label: "a", Score: 1, Payload: map[string]any{
				"nested": map[string]any{"k": "v"},
				"list":   []any{"x", "y"},
			}},
		},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	*clone.Notes = "edited"
	clone.Items[0].Payload["nested"].(map[string]any)["k"] = "changed"
	clone.Items[0].Payload["list"].([]any)[0] = "changed"

	assert.Equal(t, "note", *orig.Notes)
	assert.Equal(t, "v", orig.Items[0].Payload["nested"].(map[string]any)["k"])
	assert.Equal(t, "x", orig.Items[0].Payload["list"].([]any)[0])
}

func TestStateCloneIsDeep(t *testing.T) {
	orig := &State{
		NextAnalysisID: 2,
		NextItemID:     2,
		Analysis: []*Analysis{
			{ID: 1, Author: "alice", Title: "t", CreatedAt: time.Now().UTC(),
				Items: []Item{{ID: 1, AnalysisID: 1, Label: "a"}}},
		},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Analysis[0].Title = "changed"
	clone.Analysis[0].Items[0].Label = "changed"

	assert.Equal(t, "t", orig.Analysis[0].Title)
	assert.Equal(t, "a", orig.Analysis[0].Items[0].Label)
}
