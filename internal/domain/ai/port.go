package ai

import (
	"context"

	"github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

// Client drafts review notes for a stored analysis from its scored items.
// The draft is returned to the caller and never written back to the store.
type Client interface {
	Review(ctx context.Context, a *analyses.Analysis) (string, error)
}
