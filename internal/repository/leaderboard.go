package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/logger"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardRepository 排行榜仓储接口
type LeaderboardRepository interface {
	BaseRepository
	// Upsert 按user_id插入或更新，调用方负责默认值
	Upsert(ctx context.Context, entry *models.LeaderboardEntry) error
	// Top 按 level DESC, coins DESC 取前n名，n<=0时返回空
	Top(ctx context.Context, n int) ([]models.LeaderboardEntry, error)
	// Get 读取单个用户的排行榜记录
	Get(ctx context.Context, userID int64) (*models.LeaderboardEntry, error)
	// Rank 用户名次（从1开始），完全同分的用户名次相同
	Rank(ctx context.Context, userID int64) (int, error)
}

// leaderboardRepo 排行榜仓储实现
type leaderboardRepo struct {
	*BaseRepo
	now func() time.Time
}

// NewLeaderboardRepository 创建排行榜仓储
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepo{
		BaseRepo: NewBaseRepo(db),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upsert 插入或更新排行榜记录
func (r *leaderboardRepo) Upsert(ctx context.Context, entry *models.LeaderboardEntry) error {
	if entry.LastUpdated.IsZero() {
		entry.LastUpdated = r.now()
	}

	start := time.Now()
	err := r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "level", "coins", "last_updated"}),
		}).
		Create(entry).Error
	logger.LogDatabaseOperation("upsert", models.LeaderboardEntry{}.TableName(), time.Since(start), err)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrDatabaseUpsert, "更新排行榜 user_id=%d", entry.UserID)
	}
	return nil
}

// Top 获取排行榜前n名
func (r *leaderboardRepo) Top(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	entries := make([]models.LeaderboardEntry, 0)
	if n <= 0 {
		return entries, nil
	}

	err := r.conn(ctx).
		Order("level DESC").
		Order("coins DESC").
		Limit(n).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrDatabaseQuery, "读取排行榜 limit=%d", n)
	}
	return entries, nil
}

// Get 读取单个用户的排行榜记录
func (r *leaderboardRepo) Get(ctx context.Context, userID int64) (*models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	err := r.conn(ctx).Where("user_id = ?", userID).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "排行榜记录不存在 user_id=%d", userID)
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrDatabaseQuery, "读取排行榜记录 user_id=%d", userID)
	}
	return &entry, nil
}

// Rank 计算严格排在该用户之前的人数加一
func (r *leaderboardRepo) Rank(ctx context.Context, userID int64) (int, error) {
	entry, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	var ahead int64
	err = r.conn(ctx).
		Model(&models.LeaderboardEntry{}).
		Where("level > ? OR (level = ? AND coins > ?)", entry.Level, entry.Level, entry.Coins).
		Count(&ahead).Error
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.ErrDatabaseQuery, "计算名次 user_id=%d", userID)
	}
	return int(ahead) + 1, nil
}
