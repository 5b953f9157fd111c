package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
)

type MatchRepository interface {
	// InsertBatch 整批写入一个 batch 的全部推荐行
	InsertBatch(ctx context.Context, recs []*model.MatchRecommendation) error
	// DeleteOtherBatches 删除该活动下不属于 keepBatchID 的历史批次
	DeleteOtherBatches(ctx context.Context, eventID, keepBatchID string) (int64, error)
	LatestBatchID(ctx context.Context, eventID string) (string, error)
	ListByBatch(ctx context.Context, eventID, batchID string) ([]*model.MatchRecommendation, error)
	ListForUser(ctx context.Context, eventID, batchID, userID string) ([]*model.MatchRecommendation, error)
}

type matchRepository struct{ db *gorm.DB }

func NewMatchRepository(db *gorm.DB) MatchRepository { return &matchRepository{db: db} }

func (r *matchRepository) InsertBatch(ctx context.Context, recs []*model.MatchRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&recs, 200).Error
}

func (r *matchRepository) DeleteOtherBatches(ctx context.Context, eventID, keepBatchID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("event_id = ? AND batch_id <> ?", eventID, keepBatchID).
		Delete(&model.MatchRecommendation{})
	return res.RowsAffected, res.Error
}

func (r *matchRepository) LatestBatchID(ctx context.Context, eventID string) (string, error) {
	var rec model.MatchRecommendation
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return "", err
	}
	return rec.BatchID, nil
}

func (r *matchRepository) ListByBatch(ctx context.Context, eventID, batchID string) ([]*model.MatchRecommendation, error) {
	var res []*model.MatchRecommendation
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND batch_id = ?", eventID, batchID).
		Order("user_id, score DESC").
		Find(&res).Error
	return res, err
}

func (r *matchRepository) ListForUser(ctx context.Context, eventID, batchID, userID string) ([]*model.MatchRecommendation, error) {
	var res []*model.MatchRecommendation
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND batch_id = ? AND user_id = ?", eventID, batchID, userID).
		Order("score DESC").
		Find(&res).Error
	return res, err
}
