package models

import (
	"strconv"
	"strings"
	"time"
)

// 排行榜默认值
const (
	DefaultLevel = 1
	DefaultCoins = 0
)

// LeaderboardEntry 排行榜表，存档 level/coins 的冗余投影，每个用户一行
// level/coins 不设数据库默认值，默认值只在服务层补一次
type LeaderboardEntry struct {
	UserID      int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username    string    `gorm:"size:255;not null" json:"username"`
	Level       int       `gorm:"not null;index:idx_rank,sort:desc,priority:1" json:"level"`
	Coins       int       `gorm:"not null;index:idx_rank,sort:desc,priority:2" json:"coins"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

// TableName 指定表名
func (LeaderboardEntry) TableName() string {
	return "leaderboard"
}

// PlaceholderName 没有可读名字时使用的占位名
func PlaceholderName(userID int64) string {
	return "user" + strconv.FormatInt(userID, 10)
}

// DisplayNameOr 名字为空白时返回占位名
func DisplayNameOr(name string, userID int64) string {
	if strings.TrimSpace(name) == "" {
		return PlaceholderName(userID)
	}
	return name
}
