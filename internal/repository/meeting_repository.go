package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
)

type MeetingRepository interface {
	Create(ctx context.Context, m *model.Meeting) error
	GetByID(ctx context.Context, id string) (*model.Meeting, error)
	// FindActiveByPair 查找同一活动内该无序用户对的进行中会面
	FindActiveByPair(ctx context.Context, eventID, a, b string) (*model.Meeting, error)
	ListByUser(ctx context.Context, eventID, userID string) ([]*model.Meeting, error)
	ListByEventStatuses(ctx context.Context, eventID string, statuses []string) ([]*model.Meeting, error)
	// SlotConfirmedByOther 该时段是否已被其它会面 confirmed 占用
	SlotConfirmedByOther(ctx context.Context, slotID, excludeMeetingID string) (bool, error)
	Update(ctx context.Context, m *model.Meeting) error
}

type meetingRepository struct{ db *gorm.DB }

func NewMeetingRepository(db *gorm.DB) MeetingRepository { return &meetingRepository{db: db} }

func (r *meetingRepository) Create(ctx context.Context, m *model.Meeting) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *meetingRepository) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	var m model.Meeting
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) FindActiveByPair(ctx context.Context, eventID, a, b string) (*model.Meeting, error) {
	var m model.Meeting
	err := r.db.WithContext(ctx).
		Where("active_pair = ?", model.PairKey(eventID, a, b)).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) ListByUser(ctx context.Context, eventID, userID string) ([]*model.Meeting, error) {
	var res []*model.Meeting
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND (requester_id = ? OR receiver_id = ?)", eventID, userID, userID).
		Order("created_at DESC").
		Find(&res).Error
	return res, err
}

func (r *meetingRepository) ListByEventStatuses(ctx context.Context, eventID string, statuses []string) ([]*model.Meeting, error) {
	var res []*model.Meeting
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status IN ?", eventID, statuses).
		Find(&res).Error
	return res, err
}

func (r *meetingRepository) SlotConfirmedByOther(ctx context.Context, slotID, excludeMeetingID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Meeting{}).
		Where("booked_slot_id = ? AND id <> ?", slotID, excludeMeetingID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *meetingRepository) Update(ctx context.Context, m *model.Meeting) error {
	return r.db.WithContext(ctx).Save(m).Error
}
