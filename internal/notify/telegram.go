// Package notify delivers per-task completion reports to an operator's
// Telegram chat. Delivery is best effort; a failed report is logged and
// forgotten.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  logx.Logger
}

func NewTelegram(cfg config.TelegramNotifyConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{bot: b, chat: tele.ChatID(cfg.ChatID), log: log}, nil
}

// Report sends the aggregated outcome of one task. Implements the task
// coordinator's reporter hook.
func (t *Telegram) Report(ctx context.Context, st pipeline.TaskStatus) {
	_ = ctx
	if t == nil || t.bot == nil {
		return
	}
	if _, err := t.bot.Send(t.chat, formatReport(st)); err != nil {
		t.log.Warn("operator report failed",
			logx.String("task", st.TaskID), logx.Err(err))
	}
}

func formatReport(st pipeline.TaskStatus) string {
	icon := "✅"
	if st.Status != pipeline.StatusCompleted {
		icon = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n%s\n", icon, st.Title, st.TaskID)
	fmt.Fprintf(&b, "published %d/%d platforms in %s\n\n", st.Succeeded(), len(st.Results), st.Duration.Round(time.Millisecond))

	platforms := make([]string, 0, len(st.Results))
	for p := range st.Results {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	for _, p := range platforms {
		r := st.Results[p]
		if r.Success {
			fmt.Fprintf(&b, "✅ %s %s\n", p, r.URL)
		} else {
			fmt.Fprintf(&b, "❌ %s: %s\n", p, r.Err)
		}
	}
	return strings.TrimSpace(b.String())
}
