package service

import (
	"context"
	"errors"

	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"

	"gorm.io/gorm"
)

var (
	ErrRewardNameRequired = errors.New("奖品名称不能为空")
	ErrInvalidCost        = errors.New("奖品价格必须大于0")
	ErrInvalidStock       = errors.New("奖品库存不能为负数")
)

// CatalogService 奖品目录管理
// 纯增查操作，库存扣减只走兑换引擎
type CatalogService struct {
	rewardRepo *repository.RewardRepository
	db         *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		rewardRepo: repository.NewRewardRepository(db),
		db:         db,
	}
}

type CreateRewardRequest struct {
	Name         string
	Description  string
	ImageURL     string
	Quantity     int64
	DefaultCost  int64
	DiscountCost int64
}

func (s *CatalogService) CreateReward(ctx context.Context, req *CreateRewardRequest) (*model.Reward, error) {
	if req.Name == "" {
		return nil, ErrRewardNameRequired
	}
	if req.DefaultCost <= 0 || req.DiscountCost < 0 {
		return nil, ErrInvalidCost
	}
	if req.Quantity < 0 {
		return nil, ErrInvalidStock
	}

	reward := &model.Reward{
		RewardNo:     idgen.GenerateRewardNo(),
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Quantity:     req.Quantity,
		DefaultCost:  req.DefaultCost,
		DiscountCost: req.DiscountCost,
	}

	if err := s.rewardRepo.Create(ctx, reward); err != nil {
		return nil, err
	}

	return reward, nil
}

func (s *CatalogService) ListAvailable(ctx context.Context) ([]*model.Reward, error) {
	return s.rewardRepo.ListAvailable(ctx)
}

func (s *CatalogService) ListAll(ctx context.Context) ([]*model.Reward, error) {
	return s.rewardRepo.ListAll(ctx)
}
