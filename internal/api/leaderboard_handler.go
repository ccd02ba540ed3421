package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/service"
	"github.com/wfunc/mario-cloud-bot/internal/webapp"
)

// LeaderboardHandler 排行榜接口
type LeaderboardHandler struct {
	board service.LeaderboardService
	cfg   *config.LeaderboardConfig
}

// NewLeaderboardHandler 创建排行榜接口
func NewLeaderboardHandler(board service.LeaderboardService, cfg *config.LeaderboardConfig) *LeaderboardHandler {
	return &LeaderboardHandler{
		board: board,
		cfg:   cfg,
	}
}

// LeaderboardResponse 排行榜接口响应
type LeaderboardResponse struct {
	Limit int              `json:"limit"`
	Data  []webapp.RankRow `json:"data"`
}

// Top GET /api/v1/leaderboard?limit=N
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := h.cfg.Size
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			appErr := apperrors.Newf(apperrors.ErrInvalidParam, "limit=%q", raw)
			c.JSON(appErr.HTTPStatus(), gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
			return
		}
		limit = n
	}
	limit = clampLimit(limit, h.cfg.MaxLimit)

	entries := h.board.Top(c.Request.Context(), limit)
	rows := make([]webapp.RankRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, webapp.RankRow{
			UserID:   e.UserID,
			Username: e.Username,
			Level:    e.Level,
			Coins:    e.Coins,
		})
	}

	c.JSON(http.StatusOK, LeaderboardResponse{Limit: limit, Data: rows})
}

// clampLimit 限制在 [1, max]
func clampLimit(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
