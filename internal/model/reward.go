package model

import (
	"time"
)

// Reward 奖品目录表
// 库存有限的可兑换商品，库存只能由兑换引擎扣减、目录管理增改
type Reward struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RewardNo     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reward_no"` // 奖品编号（全局唯一）
	Name         string    `gorm:"type:varchar(128);not null" json:"name"`                 // 奖品名称
	Description  string    `gorm:"type:varchar(512)" json:"description"`                   // 奖品描述
	ImageURL     string    `gorm:"type:varchar(256)" json:"image_url"`                     // 图片地址
	Quantity     int64     `gorm:"not null;default:0" json:"quantity"`                     // 剩余库存，永远 >= 0
	DefaultCost  int64     `gorm:"not null" json:"default_cost"`                           // 原价（积分）
	DiscountCost int64     `gorm:"not null;default:0" json:"discount_cost"`                // 折扣价，0 表示无折扣
	ListedAt     time.Time `gorm:"autoCreateTime;index" json:"listed_at"`                  // 上架时间
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reward) TableName() string {
	return "reward"
}

// EffectiveCost 计算单件兑换价
// 折扣价大于 0 时生效，否则按原价；折扣价为 0 视为未设置折扣
func (r *Reward) EffectiveCost() int64 {
	if r.DiscountCost > 0 {
		return r.DiscountCost
	}
	return r.DefaultCost
}
