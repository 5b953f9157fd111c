package model

import "time"

// TimeSlot 活动内可预约的会面时段
// 排他性约束在 Meeting.BookedSlotID 上（同一时段至多一个 confirmed 会面）
type TimeSlot struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID   string    `gorm:"type:varchar(36);index:idx_slot_event;not null" json:"event_id"`
	StartsAt  time.Time `gorm:"not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	Label     string    `gorm:"type:varchar(64)" json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func (TimeSlot) TableName() string { return "time_slots" }
