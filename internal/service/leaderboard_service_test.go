package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/repository"
)

// LeaderboardServiceTestSuite 排行榜服务测试套件
type LeaderboardServiceTestSuite struct {
	suite.Suite
	ctx                context.Context
	db                 *gorm.DB
	leaderboardService LeaderboardService
}

func (suite *LeaderboardServiceTestSuite) SetupSuite() {
	suite.ctx = context.Background()
}

func (suite *LeaderboardServiceTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.leaderboardService = NewLeaderboardService(repository.NewLeaderboardRepository(suite.db), zap.NewNop())
}

func (suite *LeaderboardServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func intPtr(v int) *int {
	return &v
}

// TestTop_LevelFirst level 是第一排序键
func (suite *LeaderboardServiceTestSuite) TestTop_LevelFirst() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 42, "Mario", intPtr(5), intPtr(120)))
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 7, "Luigi", intPtr(9), intPtr(10)))

	top := suite.leaderboardService.Top(suite.ctx, 10)
	suite.Require().Len(top, 2)
	suite.Equal(int64(7), top[0].UserID)
	suite.Equal("Luigi", top[0].Username)
	suite.Equal(9, top[0].Level)
	suite.Equal(10, top[0].Coins)
	suite.Equal(int64(42), top[1].UserID)
	suite.Equal(5, top[1].Level)
	suite.Equal(120, top[1].Coins)
}

// TestTop_Bounded 返回数量不超过n且有序
func (suite *LeaderboardServiceTestSuite) TestTop_Bounded() {
	for i := 1; i <= 12; i++ {
		suite.True(suite.leaderboardService.RecordProgress(suite.ctx, int64(i), fmt.Sprintf("hero%d", i), intPtr(i%4), intPtr(i*10)))
	}

	top := suite.leaderboardService.Top(suite.ctx, 10)
	suite.Len(top, 10)
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		ordered := prev.Level > cur.Level || (prev.Level == cur.Level && prev.Coins >= cur.Coins)
		suite.True(ordered, "位置 %d 顺序错误", i)
	}

	suite.Empty(suite.leaderboardService.Top(suite.ctx, -1))
	suite.Len(suite.leaderboardService.Top(suite.ctx, 3), 3)
}

// TestRecordProgress_Defaults 缺失的 level/coins 使用默认值
func (suite *LeaderboardServiceTestSuite) TestRecordProgress_Defaults() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 5, "Toad", nil, nil))

	entry, rank, ok := suite.leaderboardService.Standing(suite.ctx, 5)
	suite.Require().True(ok)
	suite.Equal(1, rank)
	suite.Equal(models.DefaultLevel, entry.Level)
	suite.Equal(models.DefaultCoins, entry.Coins)
}

// TestRecordProgress_ExplicitZero 显式的0不会被替换为默认值
func (suite *LeaderboardServiceTestSuite) TestRecordProgress_ExplicitZero() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 5, "Toad", intPtr(0), intPtr(0)))

	entry, _, ok := suite.leaderboardService.Standing(suite.ctx, 5)
	suite.Require().True(ok)
	suite.Equal(0, entry.Level)
	suite.Equal(0, entry.Coins)
}

// TestRecordProgress_PlaceholderName 空白名字使用占位名
func (suite *LeaderboardServiceTestSuite) TestRecordProgress_PlaceholderName() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 77, "   ", intPtr(2), nil))
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 78, "", nil, nil))

	top := suite.leaderboardService.Top(suite.ctx, 10)
	suite.Require().Len(top, 2)
	suite.Equal("user77", top[0].Username)
	suite.Equal("user78", top[1].Username)
}

// TestRecordProgress_VisibleInTop 更新后的进度出现在榜单中
func (suite *LeaderboardServiceTestSuite) TestRecordProgress_VisibleInTop() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 42, "Mario", intPtr(1), intPtr(0)))
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 42, "Mario", intPtr(8), intPtr(300)))

	top := suite.leaderboardService.Top(suite.ctx, 10)
	suite.Require().Len(top, 1)
	suite.Equal(8, top[0].Level)
	suite.Equal(300, top[0].Coins)
}

// TestStanding 名次与缺失用户
func (suite *LeaderboardServiceTestSuite) TestStanding() {
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 42, "Mario", intPtr(5), intPtr(120)))
	suite.True(suite.leaderboardService.RecordProgress(suite.ctx, 7, "Luigi", intPtr(9), intPtr(10)))

	_, rank, ok := suite.leaderboardService.Standing(suite.ctx, 42)
	suite.True(ok)
	suite.Equal(2, rank)

	_, _, ok = suite.leaderboardService.Standing(suite.ctx, 1000)
	suite.False(ok)
}

// TestConcurrentUsers 不同用户的并发写入互不影响
func (suite *LeaderboardServiceTestSuite) TestConcurrentUsers() {
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			suite.leaderboardService.RecordProgress(suite.ctx, int64(id), "", intPtr(id), nil)
		}(i)
	}
	wg.Wait()

	top := suite.leaderboardService.Top(suite.ctx, 100)
	suite.Len(top, 20)
	suite.Equal(20, top[0].Level)
}

// TestStoreFailure 存储失败降级为false和空榜
func (suite *LeaderboardServiceTestSuite) TestStoreFailure() {
	repository.CleanupTestDB(suite.db)

	suite.False(suite.leaderboardService.RecordProgress(suite.ctx, 1, "x", nil, nil))
	top := suite.leaderboardService.Top(suite.ctx, 10)
	suite.NotNil(top)
	suite.Empty(top)
}

func TestLeaderboardServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LeaderboardServiceTestSuite))
}
