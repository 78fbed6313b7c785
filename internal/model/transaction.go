package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeIssue  = "ISSUE"  // 积分发放（活动奖励）
	TransactionTypeRedeem = "REDEEM" // 积分兑换（扣减）
)

// ============================================================================
// 积分流水实体
// ============================================================================

// CreditTransaction 积分流水表
// 记录档案的每一笔积分变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 发放流水必须关联活动事件ID，兑换流水 EventID 为空
// 3. 记录交易前后余额 —— 便于校验余额一致性
// 4. 任意时刻：档案流水 Amount 之和 == Profile.CurrentCredits
type CreditTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	ProfileID     int64     `gorm:"index;not null" json:"profile_id"`                            // 档案ID
	EventID       string    `gorm:"type:varchar(64);index" json:"event_id"`                      // 来源事件ID（兑换时为空）
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 积分数（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 交易类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
