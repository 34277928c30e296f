// File: internal/repository/conversation/interface.go
package conversation

import (
	"context"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// ConversationRepository persists conversation state and its utterances.
type ConversationRepository interface {
	Save(ctx context.Context, ownerID string, state *domain.ConversationState) error
	Load(ctx context.Context, id string) (*domain.ConversationState, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Conversation, int64, error)
	Delete(ctx context.Context, id string) error
}

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
