package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
)

type SlotRepository interface {
	CreateBatch(ctx context.Context, slots []*model.TimeSlot) error
	GetByID(ctx context.Context, id string) (*model.TimeSlot, error)
	ListByEvent(ctx context.Context, eventID string) ([]*model.TimeSlot, error)
}

type slotRepository struct{ db *gorm.DB }

func NewSlotRepository(db *gorm.DB) SlotRepository { return &slotRepository{db: db} }

func (r *slotRepository) CreateBatch(ctx context.Context, slots []*model.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&slots).Error
}

func (r *slotRepository) GetByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	var s model.TimeSlot
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *slotRepository) ListByEvent(ctx context.Context, eventID string) ([]*model.TimeSlot, error) {
	var res []*model.TimeSlot
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("starts_at").
		Find(&res).Error
	return res, err
}
