package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tu "github.com/mymmrac/telego/telegoutil"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/webapp"
)

const (
	// InitDataQuery 查询参数名
	InitDataQuery = "init_data"
	// InitDataHeader 请求头名
	InitDataHeader = "X-Telegram-Init-Data"

	invokerKey = "invoker"
)

// InitData 校验通过的WebApp初始化数据
type InitData struct {
	AuthDate time.Time
	QueryID  string
	User     webapp.Invoker
}

type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// TelegramAuth WebApp初始化数据认证中间件
type TelegramAuth struct {
	token  string
	maxAge time.Duration
	now    func() time.Time
}

// NewTelegramAuth 创建认证中间件，maxAge<=0 时不检查过期
func NewTelegramAuth(botToken string, maxAge time.Duration) *TelegramAuth {
	return &TelegramAuth{
		token:  botToken,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// RequireWebAppUser 需要合法初始化数据的中间件，校验失败在升级WebSocket前返回401
func (m *TelegramAuth) RequireWebAppUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractInitData(c)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "NO_INIT_DATA",
				"message": "缺少WebApp初始化数据",
			})
			c.Abort()
			return
		}

		data, err := ValidateInitData(raw, m.token, m.maxAge, m.now())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_INIT_DATA",
				"message": "无效的WebApp初始化数据",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(invokerKey, data.User)
		c.Next()
	}
}

// ValidateInitData 校验Telegram签名、过期时间并取出用户
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	values, err := tu.ValidateWebAppData(botToken, raw)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInitDataInvalid, "签名校验失败")
	}

	authUnix, err := strconv.ParseInt(values.Get(tu.WebAppAuthDate), 10, 64)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInitDataInvalid, "auth_date无效")
	}
	authDate := time.Unix(authUnix, 0)
	if maxAge > 0 && now.Sub(authDate) > maxAge {
		return nil, apperrors.Newf(apperrors.ErrInitDataExpired, "auth_date=%d", authUnix)
	}

	var user initDataUser
	if err := json.Unmarshal([]byte(values.Get(tu.WebAppUser)), &user); err != nil || user.ID == 0 {
		return nil, apperrors.New(apperrors.ErrInitDataInvalid, "缺少用户信息")
	}

	return &InitData{
		AuthDate: authDate,
		QueryID:  values.Get("query_id"),
		User: webapp.Invoker{
			ID:        user.ID,
			FirstName: user.FirstName,
			Username:  user.Username,
			Channel:   "websocket",
		},
	}, nil
}

// extractInitData 从请求中提取初始化数据
func extractInitData(c *gin.Context) string {
	// Authorization: tma <init data>
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "tma") {
			return parts[1]
		}
	}

	if data := c.GetHeader(InitDataHeader); data != "" {
		return data
	}

	return c.Query(InitDataQuery)
}

// GetInvoker 从上下文获取WebApp用户
func GetInvoker(c *gin.Context) (webapp.Invoker, bool) {
	if v, exists := c.Get(invokerKey); exists {
		if invoker, ok := v.(webapp.Invoker); ok {
			return invoker, true
		}
	}
	return webapp.Invoker{}, false
}
