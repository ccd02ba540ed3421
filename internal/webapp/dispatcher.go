package webapp

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/logger"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/service"
	"go.uber.org/zap"
)

// 消息类型
const (
	TypeCloudSave          = "cloud_save"
	TypeRequestLeaderboard = "request_leaderboard"
	TypeLeaderboardResp    = "leaderboard_resp"
	TypeCloudSaveAck       = "cloud_save_ack"

	// SourceTelegram 回复信封中的来源标识，客户端据此过滤消息
	SourceTelegram = "telegram"
)

// InvalidPolicy 无效 cloud_save 的处理策略
type InvalidPolicy int

const (
	// DropInvalidSilently 丢弃请求，不确认也不报错，只写调试日志
	DropInvalidSilently InvalidPolicy = iota
)

// ResultKind 分发结果类型
type ResultKind int

const (
	// ResultNone 无需回复（忽略或丢弃）
	ResultNone ResultKind = iota
	// ResultAck 存档请求已处理
	ResultAck
	// ResultLeaderboard 需要回复排行榜
	ResultLeaderboard
)

// String 返回结果类型名称
func (k ResultKind) String() string {
	switch k {
	case ResultAck:
		return "ack"
	case ResultLeaderboard:
		return "leaderboard"
	default:
		return "none"
	}
}

// 忽略/丢弃原因
const (
	ReasonNotObject      = "not_object"
	ReasonUnknownType    = "unknown_type"
	ReasonInvalidUserID  = "invalid_user_id"
	ReasonInvalidPayload = "invalid_payload"
)

// Invoker 发起请求的Telegram用户
type Invoker struct {
	ID        int64
	FirstName string
	Username  string
	Channel   string // "telegram" 或 "websocket"，只用于日志
}

// DisplayName 优先名字，其次用户名，都没有时返回空串由服务层补占位名
func (i Invoker) DisplayName() string {
	if i.FirstName != "" {
		return i.FirstName
	}
	return i.Username
}

// RankRow 排行榜回复中的一行
type RankRow struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	Coins    int    `json:"coins"`
}

// LeaderboardResponse 排行榜回复信封
type LeaderboardResponse struct {
	Source string          `json:"source"`
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id"`
	Data   []RankRow       `json:"data"`
}

// AckFrame 存档确认帧
type AckFrame struct {
	Source string `json:"source"`
	Type   string `json:"type"`
}

// Result 分发结果
type Result struct {
	Kind        ResultKind
	RequestID   string
	Type        string
	UserID      int64
	Reason      string
	Err         error // 被丢弃的 cloud_save 的格式错误
	Leaderboard *LeaderboardResponse
}

// Encode 序列化需要回复给客户端的内容，ResultNone 返回nil
func (r Result) Encode() ([]byte, error) {
	switch r.Kind {
	case ResultAck:
		return json.Marshal(AckFrame{Source: SourceTelegram, Type: TypeCloudSaveAck})
	case ResultLeaderboard:
		return json.Marshal(r.Leaderboard)
	default:
		return nil, nil
	}
}

// Dispatcher WebApp消息分发器
type Dispatcher struct {
	saves  service.SaveService
	board  service.LeaderboardService
	size   int
	policy InvalidPolicy
	log    *zap.Logger
}

// NewDispatcher 创建消息分发器
func NewDispatcher(saves service.SaveService, board service.LeaderboardService, cfg *config.LeaderboardConfig, log *zap.Logger) *Dispatcher {
	size := 10
	if cfg != nil && cfg.Size > 0 {
		size = cfg.Size
	}
	return &Dispatcher{
		saves:  saves,
		board:  board,
		size:   size,
		policy: DropInvalidSilently,
		log:    log,
	}
}

// Policy 当前的无效请求处理策略
func (d *Dispatcher) Policy() InvalidPolicy {
	return d.policy
}

// Dispatch 按 type 字段分发一条WebApp消息
func (d *Dispatcher) Dispatch(ctx context.Context, invoker Invoker, raw []byte) Result {
	result := Result{Kind: ResultNone, RequestID: uuid.New().String()}

	if !gjson.ValidBytes(raw) {
		result.Reason = ReasonNotObject
		d.ignore(result, invoker)
		return result
	}
	msg := gjson.ParseBytes(raw)
	if !msg.IsObject() {
		result.Reason = ReasonNotObject
		d.ignore(result, invoker)
		return result
	}

	result.Type = msg.Get("type").String()
	switch {
	case msg.Get("type").Type != gjson.String:
		result.Reason = ReasonUnknownType
	case result.Type == TypeCloudSave:
		return d.cloudSave(ctx, invoker, msg, result)
	case result.Type == TypeRequestLeaderboard:
		return d.leaderboard(ctx, invoker, msg, result)
	default:
		result.Reason = ReasonUnknownType
	}

	d.ignore(result, invoker)
	return result
}

func (d *Dispatcher) cloudSave(ctx context.Context, invoker Invoker, msg gjson.Result, result Result) Result {
	userID, ok := parseUserID(msg.Get("user_id"))
	if !ok {
		result.Reason = ReasonInvalidUserID
		return d.drop(result, invoker)
	}
	result.UserID = userID

	payload := msg.Get("payload")
	if !payload.IsObject() {
		result.Reason = ReasonInvalidPayload
		return d.drop(result, invoker)
	}
	doc, err := models.DecodeSaveDocument([]byte(payload.Raw))
	if err != nil || len(doc) == 0 {
		result.Reason = ReasonInvalidPayload
		return d.drop(result, invoker)
	}

	logger.LogPayload(invoker.Channel, result.RequestID, result.Type, userID)

	if !d.saves.Save(ctx, userID, doc) {
		d.log.Warn("存档写入失败，仍然确认",
			zap.String("request_id", result.RequestID),
			zap.Int64("user_id", userID),
		)
	}

	// 排行榜是存档的冗余投影，单独尽力更新
	var level, coins *int
	if v, ok := doc.Level(); ok {
		level = &v
	}
	if v, ok := doc.Coins(); ok {
		coins = &v
	}
	if !d.board.RecordProgress(ctx, userID, invoker.DisplayName(), level, coins) {
		d.log.Warn("排行榜镜像更新失败",
			zap.String("request_id", result.RequestID),
			zap.Int64("user_id", userID),
		)
	}

	result.Kind = ResultAck
	return result
}

func (d *Dispatcher) leaderboard(ctx context.Context, invoker Invoker, msg gjson.Result, result Result) Result {
	logger.LogPayload(invoker.Channel, result.RequestID, result.Type, invoker.ID)

	id := json.RawMessage("null")
	if v := msg.Get("id"); v.Exists() {
		id = json.RawMessage(v.Raw)
	}

	entries := d.board.Top(ctx, d.size)
	rows := make([]RankRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, RankRow{
			UserID:   e.UserID,
			Username: e.Username,
			Level:    e.Level,
			Coins:    e.Coins,
		})
	}

	result.Kind = ResultLeaderboard
	result.Leaderboard = &LeaderboardResponse{
		Source: SourceTelegram,
		Type:   TypeLeaderboardResp,
		ID:     id,
		Data:   rows,
	}
	return result
}

// drop 按策略处理无效的 cloud_save
func (d *Dispatcher) drop(result Result, invoker Invoker) Result {
	result.Err = apperrors.New(apperrors.ErrPayloadFormat, result.Reason)
	switch d.policy {
	case DropInvalidSilently:
		d.log.Debug("丢弃无效的存档请求",
			zap.String("request_id", result.RequestID),
			zap.Int64("invoker", invoker.ID),
			zap.Error(result.Err),
		)
	}
	result.Kind = ResultNone
	return result
}

func (d *Dispatcher) ignore(result Result, invoker Invoker) {
	d.log.Debug("忽略WebApp消息",
		zap.String("request_id", result.RequestID),
		zap.String("type", result.Type),
		zap.String("reason", result.Reason),
		zap.Int64("invoker", invoker.ID),
	)
}

// parseUserID 只接受JSON整数，42.0、字符串和布尔值都不算
func parseUserID(v gjson.Result) (int64, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	id, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
