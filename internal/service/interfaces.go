package service

import (
	"context"

	"github.com/wfunc/mario-cloud-bot/internal/models"
)

// SaveService 云存档服务接口
type SaveService interface {
	// Save 整体替换存档，失败只记录日志并返回false
	Save(ctx context.Context, userID int64, doc models.SaveDocument) bool
	// Load 读取存档，区分不存在、读失败和数据损坏
	Load(ctx context.Context, userID int64) LoadResult
}

// LeaderboardService 排行榜服务接口
type LeaderboardService interface {
	// RecordProgress 写入用户进度，level/coins 为nil时使用默认值
	RecordProgress(ctx context.Context, userID int64, displayName string, level, coins *int) bool
	// Top 按 level DESC, coins DESC 取前n名，失败时返回空
	Top(ctx context.Context, n int) []models.LeaderboardEntry
	// Standing 用户自己的排行榜记录和名次
	Standing(ctx context.Context, userID int64) (*models.LeaderboardEntry, int, bool)
}

// LoadStatus 读取存档的结果类型
type LoadStatus int

const (
	// LoadFound 存档存在且可解析
	LoadFound LoadStatus = iota
	// LoadNotFound 用户从未保存过
	LoadNotFound
	// LoadReadError 存储读取失败
	LoadReadError
	// LoadCorrupt 存档存在但无法解析
	LoadCorrupt
)

// String 返回状态名称
func (s LoadStatus) String() string {
	switch s {
	case LoadFound:
		return "found"
	case LoadNotFound:
		return "not_found"
	case LoadReadError:
		return "read_error"
	case LoadCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// LoadResult 读取存档的结果，只有 LoadFound 时 Document 有值
type LoadResult struct {
	Status   LoadStatus
	Document models.SaveDocument
	Err      error
}

// Found 是否读到了存档
func (r LoadResult) Found() bool {
	return r.Status == LoadFound
}
