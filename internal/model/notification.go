package model

import (
	"time"

	"gorm.io/datatypes"
)

// 通知类型
const (
	NotifyMeetingRequest = "meeting_request"
	NotifyMeetingUpdate  = "meeting_update"
	NotifyMeetingChat    = "meeting_chat"
	NotifyMatching       = "matching"
)

// 投递目标
const (
	TargetAll               = "all"
	TargetSpecific          = "specific"
	TargetEventParticipants = "event_participants"
)

// 投递记录状态
const (
	NotificationSent    = "sent"
	NotificationPending = "pending" // event_participants 展开前
)

// Notification 通知投递记录；除 ReadAt 外写入后不再修改
type Notification struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        *string        `gorm:"type:varchar(36);index:idx_notification_user" json:"user_id"` // NULL = 面向全体
	Title         string         `gorm:"type:varchar(128);not null" json:"title"`
	Message       string         `gorm:"type:text" json:"message"`
	Type          string         `gorm:"type:varchar(32);not null;index" json:"notification_type"`
	TargetType    string         `gorm:"type:varchar(32);not null;default:'specific'" json:"target_type"`
	TargetEventID *string        `gorm:"type:varchar(36);index" json:"target_event_id"`
	Metadata      datatypes.JSON `json:"metadata"`
	SentBy        string         `gorm:"type:varchar(36)" json:"sent_by"`
	Status        string         `gorm:"type:varchar(16);not null;default:'sent'" json:"status"`
	ReadAt        *time.Time     `json:"read_at"`
	CreatedAt     time.Time      `gorm:"index:idx_notification_user" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
