package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/ndrop/internal/model"
)

type ParticipantRepository interface {
	Join(ctx context.Context, eventID, userID string) error
	Cancel(ctx context.Context, eventID, userID string) error
	ListActive(ctx context.Context, eventID string) ([]*model.EventParticipant, error)
	CountActive(ctx context.Context, eventID string) (int64, error)
}

type participantRepository struct{ db *gorm.DB }

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Join 幂等：重复加入或取消后再加入都落在 confirmed
func (r *participantRepository) Join(ctx context.Context, eventID, userID string) error {
	p := &model.EventParticipant{
		ID:      uuid.New().String(),
		EventID: eventID,
		UserID:  userID,
		Status:  model.ParticipantConfirmed,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"status": model.ParticipantConfirmed}),
	}).Create(p).Error
}

func (r *participantRepository) Cancel(ctx context.Context, eventID, userID string) error {
	return r.db.WithContext(ctx).Model(&model.EventParticipant{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Update("status", model.ParticipantCanceled).Error
}

func (r *participantRepository) ListActive(ctx context.Context, eventID string) ([]*model.EventParticipant, error) {
	var res []*model.EventParticipant
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, model.ParticipantConfirmed).
		Find(&res).Error
	return res, err
}

func (r *participantRepository) CountActive(ctx context.Context, eventID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.EventParticipant{}).
		Where("event_id = ? AND status = ?", eventID, model.ParticipantConfirmed).
		Count(&cnt).Error
	return cnt, err
}
