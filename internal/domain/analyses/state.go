package analyses

// State is the export/import format for backup and migration:
// counters plus every record with its items.
type State struct {
	NextAnalysisID AnalysisID  `json:"next_analysis_id"`
	NextItemID     ItemID      `json:"next_item_id"`
	Analysis       []*Analysis `json:"analysis"`
}

// Clone deep-copies the state so exports never alias store internals.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		NextAnalysisID: s.NextAnalysisID,
		NextItemID:     s.NextItemID,
		Analysis:       make([]*Analysis, len(s.Analysis)),
	}
	for i, a := range s.Analysis {
		out.Analysis[i] = a.Clone()
	}
	return out
}
