package service

import (
	"github.com/wfunc/mario-cloud-bot/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Save        SaveService
	Leaderboard LeaderboardService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, log *zap.Logger) *Services {
	// 初始化仓储
	repos := repository.NewManager(db)

	return &Services{
		Save:        NewSaveService(repos.CloudSave(), log.Named("save")),
		Leaderboard: NewLeaderboardService(repos.Leaderboard(), log.Named("leaderboard")),
	}
}
