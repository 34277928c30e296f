// File: internal/repository/likelihood/snapshot_repository.go
package likelihood

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

var ErrSnapshotNotFound = errors.New("likelihood snapshot not found")

type gormSnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &gormSnapshotRepository{db: db}
}

// Save replaces the stored report for the report's session.
func (r *gormSnapshotRepository) Save(ctx context.Context, report *domain.LikelihoodReport) error {
	if report == nil || report.SessionID == "" {
		return fmt.Errorf("%w: report needs a session id", domain.ErrInvalidArgument)
	}
	snap := domain.NewLikelihoodSnapshot(report)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		UpdateAll: true,
	}).Create(snap).Error
	if err != nil {
		return fmt.Errorf("database error saving likelihood snapshot: %w", err)
	}
	return nil
}

func (r *gormSnapshotRepository) Find(ctx context.Context, conversationID string) (*domain.LikelihoodReport, error) {
	var snap domain.LikelihoodSnapshot
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error fetching likelihood snapshot: %w", err)
	}
	return snap.Report(), nil
}

// Delete removes the stored report. Deleting a missing report is not an error.
func (r *gormSnapshotRepository) Delete(ctx context.Context, conversationID string) error {
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&domain.LikelihoodSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("database error deleting likelihood snapshot: %w", err)
	}
	return nil
}
