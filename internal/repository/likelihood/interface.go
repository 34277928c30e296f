// File: internal/repository/likelihood/interface.go
package likelihood

import (
	"context"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// SnapshotRepository stores the latest likelihood report per conversation.
type SnapshotRepository interface {
	Save(ctx context.Context, report *domain.LikelihoodReport) error
	Find(ctx context.Context, conversationID string) (*domain.LikelihoodReport, error)
	Delete(ctx context.Context, conversationID string) error
}
