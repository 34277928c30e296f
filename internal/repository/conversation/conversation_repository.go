// File: internal/repository/conversation/conversation_repository.go
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

const messageBatchSize = 100

type gormConversationRepository struct {
	db     *gorm.DB
	logger Logger
}

func NewConversationRepository(db *gorm.DB, logger Logger) ConversationRepository {
	return &gormConversationRepository{db: db, logger: logger}
}

// Save writes the conversation header and replaces its messages in one
// transaction.
func (r *gormConversationRepository) Save(ctx context.Context, ownerID string, state *domain.ConversationState) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidArgument)
	}

	record := toRecord(ownerID, state)
	messages := toMessages(state)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"mode", "language", "status", "asked_keys", "pending", "updated_at"}),
		}).Create(record).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", state.ID).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}
		return tx.CreateInBatches(messages, messageBatchSize).Error
	})
	if err != nil {
		r.logger.Error("[ConversationRepository] save failed", "conversation_id", state.ID, "error", err)
		return fmt.Errorf("database error saving conversation: %w", err)
	}

	r.logger.Debug("[ConversationRepository] conversation saved", "conversation_id", state.ID, "messages", len(messages))
	return nil
}

func (r *gormConversationRepository) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	record, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("seq ASC").
		Find(&messages).Error; err != nil {
		r.logger.Error("[ConversationRepository] loading messages failed", "conversation_id", id, "error", err)
		return nil, fmt.Errorf("database error loading messages: %w", err)
	}
	return fromRecord(record, messages), nil
}

func (r *gormConversationRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	record, err := r.find(ctx, id)
	if err != nil {
		return "", err
	}
	return record.OwnerID, nil
}

func (r *gormConversationRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Conversation, int64, error) {
	if limit <= 0 || limit > 1000 {
		return nil, 0, fmt.Errorf("%w: limit must be between 1 and 1000", domain.ErrInvalidArgument)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidArgument)
	}

	var total int64
	q := r.db.WithContext(ctx).Model(&domain.Conversation{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("database error counting conversations: %w", err)
	}
	var records []domain.Conversation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("database error listing conversations: %w", err)
	}
	return records, total, nil
}

func (r *gormConversationRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("database error deleting conversation: %w", err)
	}
	r.logger.Info("[ConversationRepository] conversation deleted", "conversation_id", id)
	return nil
}

func (r *gormConversationRepository) find(ctx context.Context, id string) (*domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidArgument)
	}
	var record domain.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		r.logger.Error("[ConversationRepository] lookup failed", "conversation_id", id, "error", err)
		return nil, fmt.Errorf("database error fetching conversation: %w", err)
	}
	return &record, nil
}

func toRecord(ownerID string, state *domain.ConversationState) *domain.Conversation {
	keys := make([]string, 0, len(state.Asked))
	for k := range state.Asked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &domain.Conversation{
		ID:        state.ID,
		OwnerID:   ownerID,
		Mode:      string(state.Mode),
		Language:  string(state.Language),
		Status:    string(state.Status),
		AskedKeys: keys,
		Pending:   state.Pending,
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,

		AutoRespond: state.AutoRespond,
		Policy:      state.Policy,
	}
}

func toMessages(state *domain.ConversationState) []domain.Message {
	out := make([]domain.Message, 0, len(state.Utterances))
	for i, u := range state.Utterances {
		m := domain.Message{
			ConversationID: state.ID,
			Seq:            i,
			Role:           string(u.Role),
			Content:        u.Text,
			CreatedAt:      u.Timestamp,
		}
		if u.Variants != nil {
			m.English, m.Swahili = u.Variants.English, u.Variants.Swahili
		}
		out = append(out, m)
	}
	return out
}

func fromRecord(record *domain.Conversation, messages []domain.Message) *domain.ConversationState {
	state := &domain.ConversationState{
		ID:        record.ID,
		Mode:      domain.Mode(record.Mode),
		Language:  domain.Language(record.Language),
		Status:    domain.SessionStatus(record.Status),
		Asked:     make(domain.QuestionSet, len(record.AskedKeys)),
		Pending:   record.Pending,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,

		AutoRespond: record.AutoRespond,
		Policy:      record.Policy,
	}
	state.Asked.Add(record.AskedKeys...)
	state.Utterances = make([]domain.Utterance, 0, len(messages))
	for _, m := range messages {
		u := domain.Utterance{Role: domain.Role(m.Role), Text: m.Content, Timestamp: m.CreatedAt}
		if m.English != "" || m.Swahili != "" {
			u.Variants = &domain.BilingualText{English: m.English, Swahili: m.Swahili}
		}
		state.Utterances = append(state.Utterances, u)
	}
	return state
}
