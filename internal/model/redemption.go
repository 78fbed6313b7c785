package model

import (
	"time"
)

// Redemption 兑换记录表
// 历史记录，创建后不可修改
//
// 【注意】TotalCost 是兑换当时计算出的总价（单价 × 数量）
// 奖品价格后续变动不影响已有记录
type Redemption struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RedemptionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"redemption_no"` // 兑换单号（全局唯一）
	RequestID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`    // 幂等ID，客户端生成
	UserID       int64     `gorm:"index;not null" json:"user_id"`                              // 用户ID
	RewardID     int64     `gorm:"index;not null" json:"reward_id"`                            // 奖品ID
	Quantity     int64     `gorm:"not null" json:"quantity"`                                   // 兑换数量
	TotalCost    int64     `gorm:"not null" json:"total_cost"`                                 // 总价（兑换时冻结）
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Redemption) TableName() string {
	return "redemption"
}
