package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/wfunc/mario-cloud-bot/internal/config"
	apperrors "github.com/wfunc/mario-cloud-bot/internal/errors"
	"github.com/wfunc/mario-cloud-bot/internal/logger"
	"github.com/wfunc/mario-cloud-bot/internal/models"
	"github.com/wfunc/mario-cloud-bot/internal/service"
	"github.com/wfunc/mario-cloud-bot/internal/webapp"
	"go.uber.org/zap"
)

// Sender 发送消息，*telego.Bot 实现了该接口
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// PayloadHandler 处理WebApp消息
type PayloadHandler interface {
	Dispatch(ctx context.Context, invoker webapp.Invoker, raw []byte) webapp.Result
}

// Bot Telegram机器人
type Bot struct {
	api      *telego.Bot
	sender   Sender
	cfg      *config.TelegramConfig
	size     int
	services *service.Services
	handler  PayloadHandler
	log      *zap.Logger
	wg       sync.WaitGroup
}

// New 创建机器人
func New(cfg *config.Config, services *service.Services, handler PayloadHandler, log *zap.Logger) (*Bot, error) {
	options := []telego.BotOption{telego.WithLogger(newTelegoLogger(log, cfg.Telegram.Debug))}

	api, err := telego.NewBot(cfg.Telegram.Token, options...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTelegramAPI, "创建机器人失败")
	}

	b := newBot(api, &cfg.Telegram, cfg.Leaderboard.Size, services, handler, log)
	b.api = api
	return b, nil
}

func newBot(sender Sender, cfg *config.TelegramConfig, size int, services *service.Services, handler PayloadHandler, log *zap.Logger) *Bot {
	if size <= 0 {
		size = 10
	}
	return &Bot{
		sender:   sender,
		cfg:      cfg,
		size:     size,
		services: services,
		handler:  handler,
		log:      log,
	}
}

// Run 长轮询接收更新，ctx取消后等待正在处理的更新结束再返回
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTelegramAPI, "getMe")
	}
	b.log.Info("机器人已连接", zap.String("username", me.Username), zap.Int64("id", me.ID))

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.PollTimeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTelegramPolling, "启动长轮询失败")
	}

	b.serve(ctx, updates)
	b.log.Info("机器人已停止")
	return nil
}

// serve 处理更新直到通道关闭。ctx取消只停止接收，已收到的更新用不可取消的上下文处理完
func (b *Bot) serve(ctx context.Context, updates <-chan telego.Update) {
	workCtx := context.WithoutCancel(ctx)
	for update := range updates {
		b.wg.Add(1)
		go func(update telego.Update) {
			defer b.wg.Done()
			b.HandleUpdate(workCtx, update)
		}(update)
	}
	b.wg.Wait()
}

// HandleUpdate 处理一条更新，panic只影响这一条
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, debug.Stack())
		}
	}()

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.WebAppData != nil {
		b.handlePayload(ctx, msg, msg.WebAppData.Data)
		return
	}

	switch command(msg.Text) {
	case "start":
		b.handleStart(ctx, msg)
	case "rank":
		b.handleRank(ctx, msg)
	default:
		if msg.Text != "" {
			b.handlePayload(ctx, msg, msg.Text)
		}
	}
}

// handleStart 欢迎语、云存档状态和打开游戏的按钮
func (b *Bot) handleStart(ctx context.Context, msg *telego.Message) {
	var doc models.SaveDocument
	if result := b.services.Save.Load(ctx, msg.From.ID); result.Found() {
		doc = result.Document
	}

	b.send(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: msg.Chat.ID},
		Text:      FormatWelcome(doc),
		ParseMode: telego.ModeMarkdown,
		ReplyMarkup: &telego.InlineKeyboardMarkup{
			InlineKeyboard: [][]telego.InlineKeyboardButton{{
				{
					Text:   TextPlayButton,
					WebApp: &telego.WebAppInfo{URL: WebAppURL(b.cfg.WebAppURL, msg.From.ID, msg.From.FirstName, b.cfg.DefaultHeroName)},
				},
			}},
		},
	})
}

// handleRank 排行榜前N名，不在榜内的用户附带自己的名次
func (b *Bot) handleRank(ctx context.Context, msg *telego.Message) {
	entries := b.services.Leaderboard.Top(ctx, b.size)
	if len(entries) == 0 {
		b.send(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: msg.Chat.ID},
			Text:   TextEmptyBoard,
		})
		return
	}

	text := FormatRank(entries, b.size)
	if entry, rank, ok := b.services.Leaderboard.Standing(ctx, msg.From.ID); ok && rank > len(entries) {
		text += "\n\n" + FormatStanding(entry, rank)
	}

	b.send(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: msg.Chat.ID},
		Text:      text,
		ParseMode: telego.ModeMarkdown,
	})
}

// handlePayload WebApp数据或文本消息交给分发器
func (b *Bot) handlePayload(ctx context.Context, msg *telego.Message, data string) {
	invoker := webapp.Invoker{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.Username,
		Channel:   "telegram",
	}

	result := b.handler.Dispatch(ctx, invoker, []byte(data))
	switch result.Kind {
	case webapp.ResultAck:
		b.send(ctx, &telego.SendMessageParams{
			ChatID:          telego.ChatID{ID: msg.Chat.ID},
			Text:            TextSaved,
			ReplyParameters: &telego.ReplyParameters{MessageID: msg.MessageID},
		})
	case webapp.ResultLeaderboard:
		frame, err := result.Encode()
		if err != nil {
			b.log.Error("序列化排行榜失败", zap.String("request_id", result.RequestID), zap.Error(err))
			return
		}
		b.send(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: msg.Chat.ID},
			Text:   string(frame),
		})
	}
}

func (b *Bot) send(ctx context.Context, params *telego.SendMessageParams) {
	if _, err := b.sender.SendMessage(ctx, params); err != nil {
		appErr := apperrors.Wrap(err, apperrors.ErrTelegramAPI, "sendMessage")
		b.log.Error("发送消息失败",
			zap.Int64("chat_id", params.ChatID.ID),
			zap.Int("code", int(appErr.Code)),
			zap.Error(err))
	}
}

// command 解析 "/start" 或 "/start@bot_name arg" 形式的命令名
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(cmd)
}

// telegoLogger 把telego日志转到zap
type telegoLogger struct {
	sugar *zap.SugaredLogger
	debug bool
}

func newTelegoLogger(log *zap.Logger, debug bool) *telegoLogger {
	return &telegoLogger{sugar: log.Named("telego").Sugar(), debug: debug}
}

// Debugf 输出调试日志
func (l *telegoLogger) Debugf(format string, args ...any) {
	if l.debug {
		l.sugar.Debugf(format, args...)
	}
}

// Errorf 输出错误日志
func (l *telegoLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}
