package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 仓储实例（使用懒加载）
	cloudSaveOnce sync.Once
	cloudSave     CloudSaveRepository

	leaderboardOnce sync.Once
	leaderboard     LeaderboardRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// DB 获取数据库实例
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// CloudSave 获取云存档仓储
func (m *Manager) CloudSave() CloudSaveRepository {
	m.cloudSaveOnce.Do(func() {
		m.cloudSave = NewCloudSaveRepository(m.db)
	})
	return m.cloudSave
}

// Leaderboard 获取排行榜仓储
func (m *Manager) Leaderboard() LeaderboardRepository {
	m.leaderboardOnce.Do(func() {
		m.leaderboard = NewLeaderboardRepository(m.db)
	})
	return m.leaderboard
}
