package service

import (
	"context"

	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/repository"
	"go.uber.org/zap"
)

// leaderboardService 排行榜服务实现
type leaderboardService struct {
	repo repository.LeaderboardRepository
	log  *zap.Logger
}

// NewLeaderboardService 创建排行榜服务
func NewLeaderboardService(repo repository.LeaderboardRepository, log *zap.Logger) LeaderboardService {
	return &leaderboardService{
		repo: repo,
		log:  log,
	}
}

// RecordProgress 记录用户进度，默认值只在这里补一次
func (s *leaderboardService) RecordProgress(ctx context.Context, userID int64, displayName string, level, coins *int) bool {
	entry := &models.LeaderboardEntry{
		UserID:   userID,
		Username: models.DisplayNameOr(displayName, userID),
		Level:    models.DefaultLevel,
		Coins:    models.DefaultCoins,
	}
	if level != nil {
		entry.Level = *level
	}
	if coins != nil {
		entry.Coins = *coins
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.log.Error("更新排行榜失败",
			zap.Int64("user_id", userID),
			zap.Int("code", int(apperrors.GetCode(err))),
			zap.Error(err),
		)
		return false
	}

	s.log.Debug("排行榜已更新",
		zap.Int64("user_id", userID),
		zap.String("username", entry.Username),
		zap.Int("level", entry.Level),
		zap.Int("coins", entry.Coins),
	)
	return true
}

// Top 获取排行榜前n名
func (s *leaderboardService) Top(ctx context.Context, n int) []models.LeaderboardEntry {
	entries, err := s.repo.Top(ctx, n)
	if err != nil {
		s.log.Error("读取排行榜失败", zap.Int("limit", n), zap.Error(err))
		return []models.LeaderboardEntry{}
	}
	return entries
}

// Standing 获取用户的排行榜记录和名次
func (s *leaderboardService) Standing(ctx context.Context, userID int64) (*models.LeaderboardEntry, int, bool) {
	entry, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			s.log.Error("读取排行榜记录失败", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, 0, false
	}

	rank, err := s.repo.Rank(ctx, userID)
	if err != nil {
		s.log.Error("计算名次失败", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, false
	}
	return entry, rank, true
}
