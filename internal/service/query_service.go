package service

import (
	"context"

	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

// QueryService 只读聚合查询：兑换历史、排行榜、流水列表
// 不加锁，允许相对并发兑换略有滞后
type QueryService struct {
	profileRepo     *repository.ProfileRepository
	transactionRepo *repository.TransactionRepository
	redemptionRepo  *repository.RedemptionRepository
	db              *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{
		profileRepo:     repository.NewProfileRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		redemptionRepo:  repository.NewRedemptionRepository(db),
		db:              db,
	}
}

func (s *QueryService) RedemptionHistory(ctx context.Context, userID int64) ([]*repository.RedemptionHistoryItem, error) {
	return s.redemptionRepo.ListHistoryByUserID(ctx, userID)
}

type LeaderboardEntry struct {
	DisplayName    string `json:"display_name"`
	EarnedCredits  int64  `json:"earned_credits"`
	CurrentCredits int64  `json:"current_credits"`
}

// Leaderboard 排行榜：累计积分前 n 名
// 相同积分按档案ID升序，保证分页和测试结果稳定
func (s *QueryService) Leaderboard(ctx context.Context, n int) ([]*LeaderboardEntry, error) {
	profiles, err := s.profileRepo.TopByEarnedCredits(ctx, n)
	if err != nil {
		return nil, err
	}

	entries := make([]*LeaderboardEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, &LeaderboardEntry{
			DisplayName:    p.DisplayName,
			EarnedCredits:  p.EarnedCredits,
			CurrentCredits: p.CurrentCredits,
		})
	}
	return entries, nil
}

func (s *QueryService) TransactionHistory(ctx context.Context, profileID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	return s.transactionRepo.ListByProfileID(ctx, profileID, page, pageSize)
}

// RedemptionList 用户兑换记录分页列表
// 返回原始兑换记录（含 request_id、总价），和联表的 RedemptionHistory 区分，
// 供管理端按用户翻页核对兑换单
func (s *QueryService) RedemptionList(ctx context.Context, userID int64, page, pageSize int) ([]*model.Redemption, int64, error) {
	return s.redemptionRepo.ListByUserID(ctx, userID, page, pageSize)
}

// GetTransaction 按流水号查询单条流水，对账和客诉排查入口
// 不存在时返回 nil, nil，由调用方决定如何呈现
func (s *QueryService) GetTransaction(ctx context.Context, transactionNo string) (*model.CreditTransaction, error) {
	return s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
}
