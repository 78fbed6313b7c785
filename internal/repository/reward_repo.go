package repository

import (
	"context"
	"errors"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRewardNotFound = errors.New("奖品不存在")
	ErrStockNotEnough = errors.New("奖品库存不足")
)

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, reward *model.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

func (r *RewardRepository) GetByID(ctx context.Context, tx *gorm.DB, rewardID int64) (*model.Reward, error) {
	if tx == nil {
		tx = r.db
	}
	var reward model.Reward
	err := tx.WithContext(ctx).Where("id = ?", rewardID).First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// DecrementQuantity 条件扣减库存
//
// 【关键点】和 ProfileRepository.Deduct 同一套路：
//
//	WHERE id = ? AND quantity >= ?
//
// 两个并发请求抢最后一件库存时，数据库保证只有一条 UPDATE 命中，
// 另一条 RowsAffected == 0，调用方据此返回"奖品不可用"。
func (r *RewardRepository) DecrementQuantity(ctx context.Context, tx *gorm.DB, rewardID int64, quantity int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Reward{}).
		Where("id = ? AND quantity >= ?", rewardID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		_, err := r.GetByID(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		return ErrStockNotEnough
	}

	return nil
}

// ListAvailable 可兑换奖品列表（库存 > 0）
func (r *RewardRepository) ListAvailable(ctx context.Context) ([]*model.Reward, error) {
	var rewards []*model.Reward
	err := r.db.WithContext(ctx).
		Where("quantity > 0").
		Order("listed_at DESC").
		Find(&rewards).Error
	return rewards, err
}

// ListAll 全部奖品列表，按上架时间倒序
func (r *RewardRepository) ListAll(ctx context.Context) ([]*model.Reward, error) {
	var rewards []*model.Reward
	err := r.db.WithContext(ctx).
		Order("listed_at DESC").
		Find(&rewards).Error
	return rewards, err
}
