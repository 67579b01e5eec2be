package analyses

import (
	"sort"
	"time"
)

// ID tipe untuk Analysis
type AnalysisID int64

// ItemID identifier type for analysis items; allocated from its own counter,
// independent of the analysis id space.
type ItemID int64

// Item is a single scored finding owned by exactly one Analysis.
type Item struct {
	ID         ItemID         `json:"id"`
	AnalysisID AnalysisID     `json:"analysis_id"`
	Label      string         `json:"label"`
	Score      int            `json:"score"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Aggregate Root: Analysis
type Analysis struct {
	ID         AnalysisID `json:"id"`
	SnapshotID int64      `json:"snapshot_id"`
	Author     string     `json:"author"`
	Title      string     `json:"title"`
	Notes      *string    `json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
	Items      []Item     `json:"items"`
}

// Clone returns a deep copy so callers can never alias store-owned state.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	if a.Notes != nil {
		notes := *a.Notes
		out.Notes = &notes
	}
	out.Items = make([]Item, len(a.Items))
	for i, it := range a.Items {
		out.Items[i] = it
		out.Items[i].Payload = clonePayload(it.Payload)
	}
	return &out
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clonePayload(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// SortAnalyses orders records by created_at descending, ties broken by id
// descending. Every listing path must return this order.
func SortAnalyses(records []*Analysis) {
	sortFn := func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	sort.Slice(records, sortFn)
}
