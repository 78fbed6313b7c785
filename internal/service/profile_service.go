package service

import (
	"context"

	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

// ProfileService 积分档案管理
// 调用方已完成用户认证，这里只负责档案的创建和查询
type ProfileService struct {
	profileRepo *repository.ProfileRepository
	db          *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{
		profileRepo: repository.NewProfileRepository(db),
		db:          db,
	}
}

// GetOrCreate 用户首次参与时创建档案
func (s *ProfileService) GetOrCreate(ctx context.Context, userID int64, displayName string) (*model.Profile, error) {
	return s.profileRepo.GetOrCreate(ctx, userID, displayName)
}

func (s *ProfileService) GetProfile(ctx context.Context, profileID int64) (*model.Profile, error) {
	return s.profileRepo.GetByID(ctx, nil, profileID)
}

func (s *ProfileService) GetBalance(ctx context.Context, profileID int64) (int64, error) {
	profile, err := s.profileRepo.GetByID(ctx, nil, profileID)
	if err != nil {
		return 0, err
	}
	return profile.CurrentCredits, nil
}
