package model

import "time"

// Event 交流会活动
type Event struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	StartsAt  time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	Location  string    `gorm:"type:varchar(255)" json:"location"`
	Capacity  int       `gorm:"default:0" json:"capacity"` // 0 = 不限
	JoinCode  string    `gorm:"type:varchar(12);uniqueIndex;not null" json:"join_code"`
	IsPublic  bool      `gorm:"default:true" json:"is_public"`
	CreatedBy string    `gorm:"type:varchar(36);index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string { return "events" }
