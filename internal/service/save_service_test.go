package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/repository"
)

// SaveServiceTestSuite 云存档服务测试套件
type SaveServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	db          *gorm.DB
	saveService SaveService
}

func (suite *SaveServiceTestSuite) SetupSuite() {
	suite.ctx = context.Background()
}

func (suite *SaveServiceTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.saveService = NewSaveService(repository.NewCloudSaveRepository(suite.db), zap.NewNop())
}

func (suite *SaveServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

// TestSaveThenLoad 写入后读取得到相同文档
func (suite *SaveServiceTestSuite) TestSaveThenLoad() {
	ok := suite.saveService.Save(suite.ctx, 42, models.SaveDocument{"level": 5, "coins": 120})
	suite.True(ok)

	result := suite.saveService.Load(suite.ctx, 42)
	suite.Equal(LoadFound, result.Status)
	suite.True(result.Found())

	level, ok := result.Document.Level()
	suite.True(ok)
	suite.Equal(5, level)
	coins, ok := result.Document.Coins()
	suite.True(ok)
	suite.Equal(120, coins)

	encoded, err := result.Document.Encode()
	suite.NoError(err)
	suite.JSONEq(`{"level":5,"coins":120}`, encoded)
}

// TestLastWriteWins 多次保存以最后一次为准
func (suite *SaveServiceTestSuite) TestLastWriteWins() {
	suite.True(suite.saveService.Save(suite.ctx, 1, models.SaveDocument{"level": 1, "world": "1-1"}))
	suite.True(suite.saveService.Save(suite.ctx, 1, models.SaveDocument{"level": 3}))

	result := suite.saveService.Load(suite.ctx, 1)
	encoded, _ := result.Document.Encode()
	suite.JSONEq(`{"level":3}`, encoded)
}

// TestIdempotentSave 同一文档保存两次与保存一次结果相同
func (suite *SaveServiceTestSuite) TestIdempotentSave() {
	doc := models.SaveDocument{"level": 2, "coins": 15, "items": []any{"mushroom", "star"}}

	suite.True(suite.saveService.Save(suite.ctx, 9, doc))
	once, _ := suite.saveService.Load(suite.ctx, 9).Document.Encode()

	suite.True(suite.saveService.Save(suite.ctx, 9, doc))
	twice, _ := suite.saveService.Load(suite.ctx, 9).Document.Encode()

	suite.JSONEq(once, twice)
}

// TestLoadNotFound 从未保存过
func (suite *SaveServiceTestSuite) TestLoadNotFound() {
	result := suite.saveService.Load(suite.ctx, 404)
	suite.Equal(LoadNotFound, result.Status)
	suite.Nil(result.Document)
	suite.NoError(result.Err)
}

// TestLoadCorrupt 损坏的存档不会被当作不存在
func (suite *SaveServiceTestSuite) TestLoadCorrupt() {
	err := suite.db.Create(&models.CloudSave{
		UserID:    13,
		SaveData:  "{bad",
		UpdatedAt: time.Now(),
	}).Error
	suite.Require().NoError(err)

	result := suite.saveService.Load(suite.ctx, 13)
	suite.Equal(LoadCorrupt, result.Status)
	suite.Nil(result.Document)
	suite.True(apperrors.Is(result.Err, apperrors.ErrDataIntegrity))
}

// TestLoadReadError 存储不可用时与不存在区分开
func (suite *SaveServiceTestSuite) TestLoadReadError() {
	repository.CleanupTestDB(suite.db)

	result := suite.saveService.Load(suite.ctx, 1)
	suite.Equal(LoadReadError, result.Status)
	suite.Error(result.Err)

	suite.False(suite.saveService.Save(suite.ctx, 1, models.SaveDocument{"level": 1}))
}

func TestSaveServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SaveServiceTestSuite))
}

func TestLoadStatus_String(t *testing.T) {
	assert.Equal(t, "found", LoadFound.String())
	assert.Equal(t, "not_found", LoadNotFound.String())
	assert.Equal(t, "read_error", LoadReadError.String())
	assert.Equal(t, "corrupt", LoadCorrupt.String())
	assert.Equal(t, "unknown", LoadStatus(99).String())
}
