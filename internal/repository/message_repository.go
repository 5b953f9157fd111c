package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, m *model.MeetingMessage) error
	ListByMeeting(ctx context.Context, meetingID string) ([]*model.MeetingMessage, error)
}

type messageRepository struct{ db *gorm.DB }

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) Create(ctx context.Context, m *model.MeetingMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepository) ListByMeeting(ctx context.Context, meetingID string) ([]*model.MeetingMessage, error) {
	var res []*model.MeetingMessage
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at").
		Find(&res).Error
	return res, err
}
