package notify

import (
	"strings"
	"testing"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

func TestNewTelegramRejectsEmptyCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegram(config.TelegramNotifyConfig{Token: "", ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("empty token accepted")
	}
	if _, err := NewTelegram(config.TelegramNotifyConfig{Token: "t", ChatID: 0}, logx.Nop()); err == nil {
		t.Fatal("empty chat id accepted")
	}
}

func TestFormatReport(t *testing.T) {
	t.Parallel()

	st := pipeline.TaskStatus{
		TaskID:   "award_20260314_0a1b2c3d",
		Title:    "賀！團隊榮獲冠軍",
		Status:   pipeline.StatusCompleted,
		Duration: 3*time.Second + 250*time.Millisecond,
		Results: map[string]pipeline.PublishResult{
			"twitter":   {Success: true, Platform: "twitter", URL: "https://twitter.com/i/web/status/1"},
			"instagram": {Success: false, Platform: "instagram", Err: "image required"},
		},
	}

	msg := formatReport(st)
	if !strings.HasPrefix(msg, "✅ 賀！團隊榮獲冠軍") {
		t.Fatalf("header wrong:\n%s", msg)
	}
	if !strings.Contains(msg, "published 1/2 platforms") {
		t.Fatalf("summary wrong:\n%s", msg)
	}
	if !strings.Contains(msg, "❌ instagram: image required") {
		t.Fatalf("failure line missing:\n%s", msg)
	}
	// platforms are listed in stable order
	if strings.Index(msg, "instagram") > strings.Index(msg, "twitter") {
		t.Fatalf("platform order not sorted:\n%s", msg)
	}
}
