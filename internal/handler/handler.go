package handler

import (
	"errors"
	"strconv"

	"rewardsystem/internal/config"
	"rewardsystem/internal/repository"
	"rewardsystem/internal/service"
	"rewardsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	profileService *service.ProfileService
	creditService  *service.CreditService
	redeemService  *service.RedeemService
	catalogService *service.CatalogService
	queryService   *service.QueryService
	cfg            *config.Config
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		profileService: service.NewProfileService(db),
		creditService:  service.NewCreditService(db, cfg),
		redeemService:  service.NewRedeemService(db, rdb, cfg),
		catalogService: service.NewCatalogService(db),
		queryService:   service.NewQueryService(db),
		cfg:            cfg,
	}
}

// ============================================================
// 档案相关接口
// ============================================================

// GetOrCreateProfileRequest 档案创建请求
type GetOrCreateProfileRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

// GetOrCreateProfile 用户首次参与时创建积分档案
// POST /api/v1/profile/get-or-create
func (h *Handler) GetOrCreateProfile(c *gin.Context) {
	var req GetOrCreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	profile, err := h.profileService.GetOrCreate(c.Request.Context(), req.UserID, req.DisplayName)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, profile)
}

// GetBalance 查询档案积分
// GET /api/v1/profile/balance?profile_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	profileIDStr := c.Query("profile_id")
	profileID, err := strconv.ParseInt(profileIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "profile_id 参数错误")
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), profileID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			response.BusinessError(c, response.CodeProfileNotFound, "积分档案不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"profile_id":      profile.ID,
		"user_id":         profile.UserID,
		"current_credits": profile.CurrentCredits,
		"earned_credits":  profile.EarnedCredits,
	})
}

// ============================================================
// 积分发放接口
// ============================================================

// AddCreditsRequest 发放请求
type AddCreditsRequest struct {
	ProfileID int64  `json:"profile_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	EventID   string `json:"event_id" binding:"required"` // 来源事件ID
}

// AddCredits 发放积分
// POST /api/v1/credits/add
func (h *Handler) AddCredits(c *gin.Context) {
	var req AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	balance, err := h.creditService.AddCredits(c.Request.Context(), req.ProfileID, req.Amount, req.EventID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
			return
		}
		if errors.Is(err, repository.ErrProfileNotFound) {
			response.BusinessError(c, response.CodeProfileNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"profile_id": req.ProfileID,
		"balance":    balance,
	})
}

// ============================================================
// 奖品目录接口
// ============================================================

// CreateRewardRequest 奖品上架请求
type CreateRewardRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	Quantity     int64  `json:"quantity" binding:"gte=0"`
	DefaultCost  int64  `json:"default_cost" binding:"required,gt=0"`
	DiscountCost int64  `json:"discount_cost" binding:"gte=0"` // 0 表示无折扣
}

// CreateReward 上架奖品
// POST /api/v1/reward/create
func (h *Handler) CreateReward(c *gin.Context) {
	var req CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	reward, err := h.catalogService.CreateReward(c.Request.Context(), &service.CreateRewardRequest{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Quantity:     req.Quantity,
		DefaultCost:  req.DefaultCost,
		DiscountCost: req.DiscountCost,
	})
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, reward)
}

// ListAvailableRewards 可兑换奖品列表（库存 > 0）
// GET /api/v1/reward/list
func (h *Handler) ListAvailableRewards(c *gin.Context) {
	rewards, err := h.catalogService.ListAvailable(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  rewards,
		"total": len(rewards),
	})
}

// ListAllRewards 全部奖品列表，按上架时间倒序
// GET /api/v1/reward/list-all
func (h *Handler) ListAllRewards(c *gin.Context) {
	rewards, err := h.catalogService.ListAll(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  rewards,
		"total": len(rewards),
	})
}

// ============================================================
// 兑换接口
// ============================================================

// RedeemOrderRequest 兑换请求
type RedeemOrderRequest struct {
	RequestID string `json:"request_id" binding:"required"` // 幂等性ID，客户端生成
	RewardID  int64  `json:"reward_id" binding:"required"`
	ProfileID int64  `json:"profile_id" binding:"required"`
	Quantity  int64  `json:"quantity"` // 默认 1
}

// RedeemReward 兑换奖品
// POST /api/v1/redeem/execute
//
// 【关键点】兑换是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 request_id 只会兑换一次
// 2. 原子性：库存扣减、积分扣减、流水和兑换记录必须同时成功或同时失败
// 3. 并发安全：数据库条件更新保证库存和积分都不会被扣成负数
func (h *Handler) RedeemReward(c *gin.Context) {
	var req RedeemOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.redeemService.Redeem(c.Request.Context(), &service.RedeemRequest{
		RequestID: req.RequestID,
		RewardID:  req.RewardID,
		ProfileID: req.ProfileID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		// 基础设施异常：原因码已是 unknown，记录即可，不覆盖结果
		response.BusinessData(c, response.CodeRedeemFailed, err.Error(), result)
		return
	}

	if !result.OK {
		code := response.CodeRedeemFailed
		switch result.Reason {
		case service.RedeemReasonUnavailable:
			code = response.CodeRewardUnavailable
		case service.RedeemReasonInsufficient:
			code = response.CodeCreditsNotEnough
		case service.RedeemReasonInvalidQuantity:
			code = response.CodeInvalidQuantity
		}
		response.BusinessData(c, code, result.Reason, result)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 查询接口
// ============================================================

// GetRedemptionHistory 用户兑换历史
// GET /api/v1/redemption/history?user_id=xxx
func (h *Handler) GetRedemptionHistory(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	items, err := h.queryService.RedemptionHistory(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  items,
		"total": len(items),
	})
}

// ListRedemptions 用户兑换记录分页列表（管理端核对用，含 request_id）
// GET /api/v1/redemption/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListRedemptions(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	redemptions, total, err := h.queryService.RedemptionList(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      redemptions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTransaction 按流水号查询单条流水（对账/客诉排查）
// GET /api/v1/transaction/detail?transaction_no=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	transactionNo := c.Query("transaction_no")
	if transactionNo == "" {
		response.ParamError(c, "transaction_no 参数错误")
		return
	}

	trans, err := h.queryService.GetTransaction(c.Request.Context(), transactionNo)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	if trans == nil {
		response.BusinessError(c, response.CodeNotFound, "流水不存在")
		return
	}

	response.Success(c, trans)
}

// GetLeaderboard 积分排行榜
// GET /api/v1/leaderboard?n=10
func (h *Handler) GetLeaderboard(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("n", "0"))
	if n <= 0 {
		n = h.cfg.Business.LeaderboardSize
	}
	if n <= 0 {
		n = 10
	}

	entries, err := h.queryService.Leaderboard(c.Request.Context(), n)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list": entries,
	})
}

// ListTransactions 档案积分流水
// GET /api/v1/transaction/list?profile_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	profileIDStr := c.Query("profile_id")
	profileID, err := strconv.ParseInt(profileIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "profile_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.queryService.TransactionHistory(c.Request.Context(), profileID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
