package database

import (
	"fmt"

	"github.com/wfunc/mario-cloud-bot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankIndex 排行榜复合降序索引
const RankIndex = "idx_rank"

// AutoMigrate 创建存档表、排行榜表和排名索引（只做 create-if-not-exists）
func AutoMigrate(db *gorm.DB, dsn string, log *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	if db.Dialector.Name() == "sqlite" {
		if path := sqliteFilePath(dsn); path != "" {
			lockFile, err := acquireMigrationLock(path, log)
			if err != nil {
				return fmt.Errorf("获取迁移锁失败: %w", err)
			}
			defer releaseMigrationLock(lockFile, log)
		}
	}

	log.Info("开始数据库迁移...")

	for _, model := range []interface{}{
		&models.CloudSave{},
		&models.LeaderboardEntry{},
	} {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("迁移失败", zap.String("model", fmt.Sprintf("%T", model)), zap.Error(err))
			return err
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	if !db.Migrator().HasIndex(&models.LeaderboardEntry{}, RankIndex) {
		if err := db.Migrator().CreateIndex(&models.LeaderboardEntry{}, RankIndex); err != nil {
			return fmt.Errorf("创建索引 %s 失败: %w", RankIndex, err)
		}
	}

	log.Info("数据库迁移完成")
	return nil
}
