package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

// GetSystemPrompt returns the system prompt for the review assistant.
func GetSystemPrompt() string {
	return `You are a QA review assistant for snapshot analysis reports.
You receive one analysis record as JSON: an author, a title, optional notes,
and an ordered list of scored items, each with a label, an integer score and
an optional payload of raw details.

Respond with a JSON object of exactly this shape:
{
  "summary": "<2-3 sentence plain-language summary of the findings>",
  "highlights": ["<label of each item worth attention, highest scores first>"],
  "suggested_notes": "<a short notes paragraph the author could attach>"
}

Base everything strictly on the supplied record. Do not invent items.`
}

// GetUserPrompt renders the analysis record into the user message.
func GetUserPrompt(a *analyses.Analysis) string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		// Payloads are validated JSON-serializable at create time; fall back
		// to the header fields only.
		return fmt.Sprintf("Review this analysis: author=%q title=%q snapshot=%d (%d items)",
			a.Author, a.Title, a.SnapshotID, len(a.Items))
	}
	return "Review this analysis record:\n" + string(data)
}
