package model

import (
	"time"
)

// Profile 用户积分档案表
// 记录用户的当前积分和累计积分，是整个积分系统的核心数据
//
// 【字段说明】
//   - CurrentCredits: 当前可用积分，只能由发放和兑换两条路径修改，永远 >= 0
//   - EarnedCredits:  累计获得积分，只增不减，用于排行榜
//   - Version:        每次余额变动时 +1，便于排查并发问题（扣减本身靠条件更新保证）
type Profile struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`          // 用户ID，业务方传入
	DisplayName    string    `gorm:"type:varchar(64);not null" json:"display_name"` // 展示名称（排行榜用）
	CurrentCredits int64     `gorm:"not null;default:0" json:"current_credits"`    // 当前可用积分
	EarnedCredits  int64     `gorm:"not null;default:0" json:"earned_credits"`     // 累计获得积分（只增不减）
	Version        int       `gorm:"not null;default:0" json:"version"`            // 变更版本号
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profile"
}
