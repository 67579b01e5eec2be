package ai

import (
	"context"

	"github.com/bryanwahyu/analysis-vault/internal/domain/ai"
	"github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Review drafts summary notes for a stored analysis. The result is advisory
// only; stored records are immutable.
func (s *Service) Review(ctx context.Context, a *analyses.Analysis) (string, error) {
	return s.client.Review(ctx, a)
}
