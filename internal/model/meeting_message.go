package model

import "time"

// MeetingMessage 会面内聊天消息，只追加不修改
type MeetingMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MeetingID string    `gorm:"type:varchar(36);index:idx_message_meeting;not null" json:"meeting_id"`
	SenderID  string    `gorm:"type:varchar(36);not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_message_meeting" json:"created_at"`
}

func (MeetingMessage) TableName() string { return "meeting_messages" }
