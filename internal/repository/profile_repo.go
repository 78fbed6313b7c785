package repository

import (
	"context"
	"errors"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProfileNotFound  = errors.New("积分档案不存在")
	ErrCreditsNotEnough = errors.New("积分不足")
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, tx *gorm.DB, profileID int64) (*model.Profile, error) {
	if tx == nil {
		tx = r.db
	}
	var profile model.Profile
	err := tx.WithContext(ctx).Where("id = ?", profileID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Deduct 条件扣减积分
//
// 【关键点】扣减的正确性完全靠这条带余额守卫的 UPDATE：
//
//	WHERE id = ? AND current_credits >= ?
//
// 并发扣减同一档案时，数据库对同一行的更新天然串行，
// 守卫条件保证余额永远不会被扣成负数。
// RowsAffected == 0 时再查一次区分"档案不存在"和"积分不足"。
func (r *ProfileRepository) Deduct(ctx context.Context, tx *gorm.DB, profileID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ? AND current_credits >= ?", profileID, amount).
		Updates(map[string]interface{}{
			"current_credits": gorm.Expr("current_credits - ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		profile, err := r.GetByID(ctx, tx, profileID)
		if err != nil {
			return err
		}
		if profile.CurrentCredits < amount {
			return ErrCreditsNotEnough
		}
		// 守卫条件满足却没更新到行，只能是并发窗口内余额又变了，按积分不足处理
		return ErrCreditsNotEnough
	}

	return nil
}

// Increase 发放积分：当前积分和累计积分同步增加
func (r *ProfileRepository) Increase(ctx context.Context, tx *gorm.DB, profileID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ?", profileID).
		Updates(map[string]interface{}{
			"current_credits": gorm.Expr("current_credits + ?", amount),
			"earned_credits":  gorm.Expr("earned_credits + ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// GetOrCreate 首次参与时创建档案，并发创建靠唯一索引 + DoNothing 兜底
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64, displayName string) (*model.Profile, error) {
	profile, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}

	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	newProfile := &model.Profile{
		UserID:      userID,
		DisplayName: displayName,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newProfile).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// TopByEarnedCredits 排行榜查询：累计积分降序，相同积分按档案ID升序保证结果稳定
func (r *ProfileRepository) TopByEarnedCredits(ctx context.Context, limit int) ([]*model.Profile, error) {
	var profiles []*model.Profile
	err := r.db.WithContext(ctx).
		Order("earned_credits DESC, id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}
