package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"gorm.io/gorm"
)

// CloudSaveRepositoryTestSuite 云存档仓储测试套件
type CloudSaveRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo CloudSaveRepository
}

func (suite *CloudSaveRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewCloudSaveRepository(suite.db)
}

func (suite *CloudSaveRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// TestPutGet 写入后读取
func (suite *CloudSaveRepositoryTestSuite) TestPutGet() {
	ctx := context.Background()

	err := suite.repo.Put(ctx, 42, models.SaveDocument{"level": 5, "coins": 120})
	suite.NoError(err)

	record, err := suite.repo.Get(ctx, 42)
	suite.NoError(err)
	suite.Equal(int64(42), record.UserID)
	suite.JSONEq(`{"level":5,"coins":120}`, record.SaveData)
	suite.WithinDuration(time.Now(), record.UpdatedAt, time.Minute)
}

// TestPut_Replaces 重复写入整体替换，不做合并
func (suite *CloudSaveRepositoryTestSuite) TestPut_Replaces() {
	ctx := context.Background()

	suite.NoError(suite.repo.Put(ctx, 7, models.SaveDocument{"level": 1, "coins": 10, "hat": "red"}))
	suite.NoError(suite.repo.Put(ctx, 7, models.SaveDocument{"level": 2}))

	record, err := suite.repo.Get(ctx, 7)
	suite.NoError(err)
	suite.JSONEq(`{"level":2}`, record.SaveData)

	var count int64
	suite.db.Model(&models.CloudSave{}).Where("user_id = ?", 7).Count(&count)
	suite.Equal(int64(1), count)
}

// TestGet_NotFound 未保存过的用户
func (suite *CloudSaveRepositoryTestSuite) TestGet_NotFound() {
	record, err := suite.repo.Get(context.Background(), 999)
	suite.Nil(record)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))
}

// TestGet_ReadFailure 读失败与不存在区分开
func (suite *CloudSaveRepositoryTestSuite) TestGet_ReadFailure() {
	CleanupTestDB(suite.db)

	_, err := suite.repo.Get(context.Background(), 1)
	suite.Error(err)
	suite.False(apperrors.Is(err, apperrors.ErrNotFound))
	suite.True(apperrors.Is(err, apperrors.ErrDatabaseQuery))

	err = suite.repo.Put(context.Background(), 1, models.SaveDocument{"level": 1})
	suite.True(apperrors.Is(err, apperrors.ErrDatabaseUpsert))
}

func TestCloudSaveRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(CloudSaveRepositoryTestSuite))
}

func TestCloudSaveRepository_EncodeError(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)

	repo := NewCloudSaveRepository(db)
	err := repo.Put(context.Background(), 1, models.SaveDocument{"bad": make(chan int)})
	assert.True(t, apperrors.Is(err, apperrors.ErrSaveEncode))
}
