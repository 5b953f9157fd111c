package model

import (
	"strings"
	"time"
)

// 会面状态机：pending → accepted | declined；accepted → confirmed | canceled
const (
	MeetingPending   = "pending"
	MeetingAccepted  = "accepted"
	MeetingDeclined  = "declined"
	MeetingConfirmed = "confirmed"
	MeetingCanceled  = "canceled"
)

// ActiveMeetingStatuses 视为“进行中”的状态（同一对用户同一活动内互斥）
var ActiveMeetingStatuses = []string{MeetingPending, MeetingAccepted, MeetingConfirmed}

// Meeting 两名参加者之间的会面请求
//
// 两个唯一索引把并发不变量下沉到存储层：
//   - ActivePair: 进行中时 = "eventID:minUserID:maxUserID"，终态置 NULL，
//     保证同一无序用户对在同一活动内至多一条进行中记录
//   - BookedSlotID: confirmed 时 = SlotID，其余为 NULL，
//     保证一个时段至多被一个 confirmed 会面占用
type Meeting struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID     string  `gorm:"type:varchar(36);index:idx_meeting_event;not null" json:"event_id"`
	RequesterID string  `gorm:"type:varchar(36);index:idx_meeting_requester;not null" json:"requester_id"`
	ReceiverID  string  `gorm:"type:varchar(36);index:idx_meeting_receiver;not null" json:"receiver_id"`
	Status      string  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	SlotID      *string `gorm:"type:varchar(36)" json:"slot_id"`
	Message     string  `gorm:"type:text" json:"message"`

	ActivePair   *string `gorm:"type:varchar(120);uniqueIndex:ux_meeting_active_pair" json:"-"`
	BookedSlotID *string `gorm:"type:varchar(36);uniqueIndex:ux_meeting_booked_slot" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Meeting) TableName() string { return "meetings" }

// IsActive 状态是否属于进行中集合
func (m *Meeting) IsActive() bool {
	return m.Status == MeetingPending || m.Status == MeetingAccepted || m.Status == MeetingConfirmed
}

// Other 返回对侧参与者；userID 不是参与者时返回空串
func (m *Meeting) Other(userID string) string {
	switch userID {
	case m.RequesterID:
		return m.ReceiverID
	case m.ReceiverID:
		return m.RequesterID
	}
	return ""
}

// PairKey 无序用户对键（与活动绑定）
func PairKey(eventID, a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return eventID + ":" + a + ":" + b
}

// ValidMeetingTarget 校验状态迁移目标值
func ValidMeetingTarget(s string) bool {
	switch s {
	case MeetingAccepted, MeetingDeclined, MeetingCanceled, MeetingConfirmed:
		return true
	}
	return false
}
