package bot

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wfunc/mario-cloud-bot/internal/models"
)

// 消息文本
const (
	TextSaved      = "✅ Сохранено!"
	TextEmptyBoard = "📭 Рейтинг пока пуст."
	TextPlayButton = "🎮 Играть!"
	textRankHeader = "🏆 *Топ-%d Марио-героев:*"
	textWelcome    = "👾 *Марио в Telegram!*%s\n\nНажмите кнопку, чтобы начать приключение:"
)

const (
	maxNameRunes  = 12
	truncatedKeep = 10
)

var medals = []string{"🥇", "🥈", "🥉"}

// FormatWelcome /start 的欢迎语，有云存档时附带存档状态
func FormatWelcome(doc models.SaveDocument) string {
	status := ""
	if doc != nil {
		status = "\n" + FormatCloudStatus(doc)
	}
	return fmt.Sprintf(textWelcome, status)
}

// FormatCloudStatus 云存档状态行，缺少字段时显示默认值
func FormatCloudStatus(doc models.SaveDocument) string {
	level, ok := doc.Level()
	if !ok {
		level = models.DefaultLevel
	}
	coins, ok := doc.Coins()
	if !ok {
		coins = models.DefaultCoins
	}
	return fmt.Sprintf("💾 Облако: Ур.%d, %d💰", level, coins)
}

// FormatRank /rank 的榜单文本，size 是榜单长度
func FormatRank(entries []models.LeaderboardEntry, size int) string {
	if len(entries) == 0 {
		return TextEmptyBoard
	}

	lines := make([]string, 0, len(entries)+2)
	lines = append(lines, fmt.Sprintf(textRankHeader, size), "")
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %d. %s — Ур.%d, %d💰",
			medal(i), i+1, BoldName(TruncateName(e.Username)), e.Level, e.Coins))
	}
	return strings.Join(lines, "\n")
}

// FormatStanding 不在榜单内的用户看到自己的名次
func FormatStanding(entry *models.LeaderboardEntry, rank int) string {
	return fmt.Sprintf("📍 Ваше место: %d — Ур.%d, %d💰", rank, entry.Level, entry.Coins)
}

// TruncateName 超过12个字符的名字截成10个字符加".."
func TruncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameRunes {
		return name
	}
	return string(runes[:truncatedKeep]) + ".."
}

// BoldName 加粗名字。旧版Markdown实体内部不识别转义，名字里的*只能放在实体之外转义
func BoldName(name string) string {
	var b strings.Builder
	for i, part := range strings.Split(name, "*") {
		if i > 0 {
			b.WriteString("\\*")
		}
		if part != "" {
			b.WriteString("*" + part + "*")
		}
	}
	return b.String()
}

// WebAppURL 游戏页面地址，携带用户ID和名字
func WebAppURL(base string, userID int64, firstName, defaultName string) string {
	if firstName == "" {
		firstName = defaultName
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "user_id=" + strconv.FormatInt(userID, 10) + "&first_name=" + url.QueryEscape(firstName)
}

func medal(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return "  "
}
