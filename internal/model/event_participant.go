package model

import "time"

// 参加状态
const (
	ParticipantConfirmed = "confirmed"
	ParticipantCanceled  = "canceled"
)

// EventParticipant 用户-活动参加关系
// idx_participant_pair = (event_id, user_id) 复合唯一键，避免重复加入
type EventParticipant struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID   string    `gorm:"type:varchar(36);index:idx_participant_event;index:idx_participant_pair,unique;not null" json:"event_id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_participant_pair,unique" json:"user_id"`
	Status    string    `gorm:"type:varchar(16);not null;default:'confirmed'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EventParticipant) TableName() string { return "event_participants" }
