package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User 用户与数字名片资料
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email    string `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password string `gorm:"type:varchar(128);not null" json:"-"` // bcrypt hash
	Nickname string `gorm:"type:varchar(64);not null" json:"nickname"`
	// 名片字段
	Role             string         `gorm:"type:varchar(64)" json:"role"`
	Company          string         `gorm:"type:varchar(128)" json:"company"`
	WorkField        string         `gorm:"type:varchar(64);index" json:"work_field"`
	InterestKeywords datatypes.JSON `json:"interest_keywords"` // ["saas","ai",...]
	AvatarURL        string         `gorm:"type:text" json:"avatar_url"`
	IsAdmin          bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Interests 解码兴趣关键词；非法 JSON 视为空
func (u *User) Interests() []string {
	var out []string
	if len(u.InterestKeywords) == 0 {
		return out
	}
	_ = json.Unmarshal(u.InterestKeywords, &out)
	return out
}

// Profile 对外暴露的名片视图（去除邮箱等私有字段）
type Profile struct {
	ID               string   `json:"id"`
	Nickname         string   `json:"nickname"`
	Role             string   `json:"role"`
	Company          string   `json:"company"`
	WorkField        string   `json:"work_field"`
	InterestKeywords []string `json:"interest_keywords"`
	AvatarURL        string   `json:"avatar_url"`
}

func (u *User) ToProfile() Profile {
	return Profile{
		ID:               u.ID,
		Nickname:         u.Nickname,
		Role:             u.Role,
		Company:          u.Company,
		WorkField:        u.WorkField,
		InterestKeywords: u.Interests(),
		AvatarURL:        u.AvatarURL,
	}
}
