package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
)

type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetByJoinCode(ctx context.Context, code string) (*model.Event, error)
	ListPublic(ctx context.Context, offset, limit int) ([]*model.Event, error)
	Update(ctx context.Context, e *model.Event) error
}

type eventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) EventRepository { return &eventRepository{db: db} }

func (r *eventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) GetByJoinCode(ctx context.Context, code string) (*model.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).First(&e, "join_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) ListPublic(ctx context.Context, offset, limit int) ([]*model.Event, error) {
	var res []*model.Event
	err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("starts_at").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *eventRepository) Update(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Save(e).Error
}
