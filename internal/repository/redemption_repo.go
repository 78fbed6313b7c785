package repository

import (
	"context"
	"errors"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) Create(ctx context.Context, tx *gorm.DB, redemption *model.Redemption) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(redemption).Error
}

func (r *RedemptionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Redemption, error) {
	var redemption model.Redemption
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// RedemptionHistoryItem 兑换历史查询结果（联表 Redemption × Reward）
type RedemptionHistoryItem struct {
	RedemptionNo string    `json:"redemption_no"`
	RewardName   string    `json:"reward_name"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	Quantity     int64     `json:"quantity"`
	TotalCost    int64     `json:"total_cost"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

// ListHistoryByUserID 用户兑换历史，按兑换时间倒序
// 只读联表查询，不加锁，允许读到轻微滞后的数据
func (r *RedemptionRepository) ListHistoryByUserID(ctx context.Context, userID int64) ([]*RedemptionHistoryItem, error) {
	var items []*RedemptionHistoryItem
	err := r.db.WithContext(ctx).
		Model(&model.Redemption{}).
		Select("redemption.redemption_no, reward.name AS reward_name, reward.description, reward.image_url, redemption.quantity, redemption.total_cost, redemption.created_at AS redeemed_at").
		Joins("JOIN reward ON reward.id = redemption.reward_id").
		Where("redemption.user_id = ?", userID).
		Order("redemption.created_at DESC").
		Scan(&items).Error
	return items, err
}

func (r *RedemptionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Redemption, int64, error) {
	var redemptions []*model.Redemption
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Redemption{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&redemptions).Error

	return redemptions, total, err
}
