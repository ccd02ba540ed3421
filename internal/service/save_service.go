package service

import (
	"context"

	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/repository"
	"go.uber.org/zap"
)

// saveService 云存档服务实现
type saveService struct {
	repo repository.CloudSaveRepository
	log  *zap.Logger
}

// NewSaveService 创建云存档服务
func NewSaveService(repo repository.CloudSaveRepository, log *zap.Logger) SaveService {
	return &saveService{
		repo: repo,
		log:  log,
	}
}

// Save 保存存档
func (s *saveService) Save(ctx context.Context, userID int64, doc models.SaveDocument) bool {
	if err := s.repo.Put(ctx, userID, doc); err != nil {
		s.log.Error("保存存档失败",
			zap.Int64("user_id", userID),
			zap.Int("code", int(apperrors.GetCode(err))),
			zap.Error(err),
		)
		return false
	}

	s.log.Debug("存档已保存", zap.Int64("user_id", userID))
	return true
}

// Load 读取存档
func (s *saveService) Load(ctx context.Context, userID int64) LoadResult {
	record, err := s.repo.Get(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return LoadResult{Status: LoadNotFound}
		}
		s.log.Error("读取存档失败", zap.Int64("user_id", userID), zap.Error(err))
		return LoadResult{Status: LoadReadError, Err: err}
	}

	doc, err := models.DecodeSaveDocument([]byte(record.SaveData))
	if err != nil {
		appErr := apperrors.Wrapf(err, apperrors.ErrDataIntegrity, "存档无法解析 user_id=%d", userID)
		s.log.Error("存档数据损坏",
			zap.Int64("user_id", userID),
			zap.Int("code", int(appErr.Code)),
			zap.Int("size", len(record.SaveData)),
			zap.Error(err),
		)
		return LoadResult{Status: LoadCorrupt, Err: appErr}
	}

	return LoadResult{Status: LoadFound, Document: doc}
}
