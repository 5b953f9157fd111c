package model

import (
	"time"

	"gorm.io/datatypes"
)

// MatchRecommendation 一次批量匹配为某用户产出的单条候选推荐
// 整批以 BatchID 分组，新批次落库后旧批次整体删除（replace-by-newer-batch）
type MatchRecommendation struct {
	ID                string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID           string         `gorm:"type:varchar(36);index:idx_match_event_batch;not null" json:"event_id"`
	BatchID           string         `gorm:"type:varchar(36);index:idx_match_event_batch;not null" json:"batch_id"`
	UserID            string         `gorm:"type:varchar(36);index:idx_match_user;not null" json:"user_id"`
	RecommendedUserID string         `gorm:"type:varchar(36);not null" json:"recommended_user_id"`
	Score             int            `gorm:"not null" json:"score"`
	MatchReasons      datatypes.JSON `json:"match_reasons"` // {"shared_interests":[...],"same_work_field":bool}
	CreatedAt         time.Time      `json:"created_at"`
}

func (MatchRecommendation) TableName() string { return "match_recommendations" }
