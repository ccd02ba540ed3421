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

// CloudSaveRepository 云存档仓储接口
type CloudSaveRepository interface {
	BaseRepository
	// Put 整体替换用户存档
	Put(ctx context.Context, userID int64, doc models.SaveDocument) error
	// Get 读取存档原始记录，不存在时返回 ErrNotFound
	Get(ctx context.Context, userID int64) (*models.CloudSave, error)
}

// cloudSaveRepo 云存档仓储实现
type cloudSaveRepo struct {
	*BaseRepo
	now func() time.Time
}

// NewCloudSaveRepository 创建云存档仓储
func NewCloudSaveRepository(db *gorm.DB) CloudSaveRepository {
	return &cloudSaveRepo{
		BaseRepo: NewBaseRepo(db),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Put 写入存档（存在则覆盖）
func (r *cloudSaveRepo) Put(ctx context.Context, userID int64, doc models.SaveDocument) error {
	data, err := doc.Encode()
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrSaveEncode, "user_id=%d", userID)
	}

	record := &models.CloudSave{
		UserID:    userID,
		SaveData:  data,
		UpdatedAt: r.now(),
	}

	start := time.Now()
	err = r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"save_data", "updated_at"}),
		}).
		Create(record).Error
	logger.LogDatabaseOperation("upsert", models.CloudSave{}.TableName(), time.Since(start), err)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrDatabaseUpsert, "写入存档 user_id=%d", userID)
	}
	return nil
}

// Get 根据用户ID读取存档
func (r *cloudSaveRepo) Get(ctx context.Context, userID int64) (*models.CloudSave, error) {
	var record models.CloudSave
	err := r.conn(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "存档不存在 user_id=%d", userID)
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrDatabaseQuery, "读取存档 user_id=%d", userID)
	}
	return &record, nil
}
