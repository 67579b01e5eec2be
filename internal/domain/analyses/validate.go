package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NewItem is the caller-supplied shape of an item before the store assigns
// ids. Payload, when non-nil, must be JSON-serializable.
type NewItem struct {
	Label   string
	Score   int
	Payload map[string]any
}

// NewAnalysis is the input to Repository.CreateAnalysis.
type NewAnalysis struct {
	SnapshotID int64
	Author     string
	Title      string
	Notes      *string
	Items      []NewItem
}

// Normalize trims the free-text fields in place.
func (n *NewAnalysis) Normalize() {
	n.Author = strings.TrimSpace(n.Author)
	n.Title = strings.TrimSpace(n.Title)
	if n.Notes != nil {
		notes := strings.TrimSpace(*n.Notes)
		n.Notes = &notes
	}
	for i := range n.Items {
		n.Items[i].Label = strings.TrimSpace(n.Items[i].Label)
	}
}

// Validate checks the create preconditions. Callers run Normalize first.
func (n *NewAnalysis) Validate() error {
	if n.Author == "" {
		return fmt.Errorf("%w: author must be a non-empty string", ErrValidation)
	}
	if n.Title == "" {
		return fmt.Errorf("%w: title must be a non-empty string", ErrValidation)
	}
	for i, item := range n.Items {
		if item.Label == "" {
			return fmt.Errorf("%w: items[%d].label must be a non-empty string", ErrValidation, i)
		}
		if item.Payload != nil {
			if _, err := json.Marshal(item.Payload); err != nil {
				return fmt.Errorf("%w: items[%d].payload is not JSON-serializable: %v", ErrValidation, i, err)
			}
		}
	}
	return nil
}

// ValidateState checks an ImportState payload before any mutation. Beyond the
// per-field checks, it enforces item/parent foreign-key consistency and that
// the exported counters sit above every existing id, so a replayed state can
// never alias ids on subsequent creates.
func ValidateState(s *State) error {
	if s == nil {
		return fmt.Errorf("%w: state is nil", ErrInvalidState)
	}
	if s.NextAnalysisID < 1 {
		return fmt.Errorf("%w: next_analysis_id must be a positive integer", ErrInvalidState)
	}
	if s.NextItemID < 1 {
		return fmt.Errorf("%w: next_item_id must be a positive integer", ErrInvalidState)
	}

	seenAnalysis := make(map[AnalysisID]bool, len(s.Analysis))
	seenItem := make(map[ItemID]bool)
	for i, a := range s.Analysis {
		if a == nil {
			return fmt.Errorf("%w: analysis[%d] is null", ErrInvalidState, i)
		}
		if a.ID < 1 {
			return fmt.Errorf("%w: analysis[%d].id must be a positive integer", ErrInvalidState, i)
		}
		if seenAnalysis[a.ID] {
			return fmt.Errorf("%w: duplicate analysis id %d", ErrInvalidState, a.ID)
		}
		seenAnalysis[a.ID] = true
		if a.ID >= s.NextAnalysisID {
			return fmt.Errorf("%w: analysis id %d >= next_analysis_id %d", ErrInvalidState, a.ID, s.NextAnalysisID)
		}
		if strings.TrimSpace(a.Author) == "" {
			return fmt.Errorf("%w: analysis %d: author is required", ErrInvalidState, a.ID)
		}
		if strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("%w: analysis %d: title is required", ErrInvalidState, a.ID)
		}
		if a.CreatedAt.IsZero() {
			return fmt.Errorf("%w: analysis %d: created_at is required", ErrInvalidState, a.ID)
		}
		for j, item := range a.Items {
			if item.ID < 1 {
				return fmt.Errorf("%w: analysis %d: items[%d].id must be a positive integer", ErrInvalidState, a.ID, j)
			}
			if seenItem[item.ID] {
				return fmt.Errorf("%w: duplicate item id %d", ErrInvalidState, item.ID)
			}
			seenItem[item.ID] = true
			if item.ID >= s.NextItemID {
				return fmt.Errorf("%w: item id %d >= next_item_id %d", ErrInvalidState, item.ID, s.NextItemID)
			}
			if item.AnalysisID != a.ID {
				return fmt.Errorf("%w: item %d belongs to analysis %d, found under %d", ErrInvalidState, item.ID, item.AnalysisID, a.ID)
			}
			if strings.TrimSpace(item.Label) == "" {
				return fmt.Errorf("%w: item %d: label is required", ErrInvalidState, item.ID)
			}
		}
	}
	return nil
}
