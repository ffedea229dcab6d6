// Package config loads and watches the awardbot configuration file.
// JSON is the native format; YAML files are coerced to JSON so both go
// through the same strict decoder.
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Source   SourceConfig   `json:"source"`
	Ollama   OllamaConfig   `json:"ollama"`
	Publish  PublishConfig  `json:"publish"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Notify   *NotifyConfig  `json:"notify,omitempty"`
	Schedule ScheduleConfig `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
	File    string `json:"file,omitempty"`
}

// SourceConfig points the scanner at the news listing.
type SourceConfig struct {
	// BaseURL is the site root, e.g. "https://www.cs.nycu.edu.tw".
	BaseURL string `json:"base_url"`
	// NewsPath is the listing page path relative to BaseURL.
	NewsPath string `json:"news_path,omitempty"`
	// Keywords override the built-in award keyword list when non-empty.
	Keywords []string `json:"keywords,omitempty"`
	// Timeout is a Go duration string for each HTTP fetch. Default "15s".
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// OllamaConfig selects the local LLM used for content generation. When
// Disabled is set the deterministic fallback generator is used directly.
type OllamaConfig struct {
	Host     string `json:"host,omitempty"`  // default http://localhost:11434
	Model    string `json:"model,omitempty"` // default qwen3:8b
	Timeout  string `json:"timeout,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PublishConfig holds fan-out pacing and per-platform credentials.
// Every platform endpoint is registered even when its section is nil;
// posting without credentials yields a failed result for that platform.
type PublishConfig struct {
	// PaceEvery is the minimum gap between post requests during fan-out.
	// Default "1s"; "0s" disables pacing.
	PaceEvery string `json:"pace_every,omitempty"`

	Twitter   *TwitterConfig   `json:"twitter,omitempty"`
	Facebook  *FacebookConfig  `json:"facebook,omitempty"`
	Instagram *InstagramConfig `json:"instagram,omitempty"`
	LinkedIn  *LinkedInConfig  `json:"linkedin,omitempty"`
	Reddit    *RedditConfig    `json:"reddit,omitempty"`
}

type TwitterConfig struct {
	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret"`
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_secret"`
	BearerToken  string `json:"bearer_token,omitempty"`
}

type FacebookConfig struct {
	PageID      string `json:"page_id"`
	AccessToken string `json:"access_token"`
}

type InstagramConfig struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
}

type LinkedInConfig struct {
	OrganizationID string `json:"organization_id"`
	AccessToken    string `json:"access_token"`
}

type RedditConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Subreddit    string `json:"subreddit"`
	UserAgent    string `json:"user_agent,omitempty"`
}

// StorageConfig selects the processed-set driver. An empty driver disables
// persistence, so every run re-announces everything it finds.
type StorageConfig struct {
	Driver string `json:"driver"` // "sqlite" or "file"
	Path   string `json:"path"`
}

type NotifyConfig struct {
	Telegram *TelegramNotifyConfig `json:"telegram,omitempty"`
}

// TelegramNotifyConfig delivers per-task completion reports to an operator chat.
type TelegramNotifyConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type ScheduleConfig struct {
	// IntervalMinutes between scans in continuous mode. Default 30.
	IntervalMinutes int `json:"interval_minutes,omitempty"`
	// SettleTimeout bounds how long a single cycle waits for in-flight
	// tasks to finish. Go duration string, default "5m".
	SettleTimeout string `json:"settle_timeout,omitempty"`
}

// Validate checks the fields that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if !strings.HasPrefix(c.Source.BaseURL, "http://") && !strings.HasPrefix(c.Source.BaseURL, "https://") {
		return fmt.Errorf("source.base_url must be an http(s) URL")
	}
	if c.Storage != nil {
		switch c.Storage.Driver {
		case "", "sqlite", "file":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if c.Storage.Driver != "" && strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	}
	if c.Notify != nil && c.Notify.Telegram != nil {
		tg := c.Notify.Telegram
		if strings.TrimSpace(tg.Token) == "" || tg.ChatID == 0 {
			return fmt.Errorf("notify.telegram: token and chat_id are both required")
		}
	}
	for _, d := range []struct{ path, raw string }{
		{"source.timeout", c.Source.Timeout},
		{"ollama.timeout", c.Ollama.Timeout},
		{"publish.pace_every", c.Publish.PaceEvery},
		{"schedule.settle_timeout", c.Schedule.SettleTimeout},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if c.Schedule.IntervalMinutes < 0 {
		return fmt.Errorf("schedule.interval_minutes must be >= 0")
	}
	return nil
}

// Defaulted fields, resolved at read time so a hot-reloaded config goes
// through the same path.

func (s SourceConfig) FetchTimeout() time.Duration {
	d, err := ParseDurationOrDefault("source.timeout", s.Timeout, 15*time.Second)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

func (o OllamaConfig) BaseURL() string {
	if o.Host == "" {
		return "http://localhost:11434"
	}
	return strings.TrimRight(o.Host, "/")
}

func (o OllamaConfig) ModelName() string {
	if o.Model == "" {
		return "qwen3:8b"
	}
	return o.Model
}

func (o OllamaConfig) CallTimeout() time.Duration {
	d, err := ParseDurationOrDefault("ollama.timeout", o.Timeout, 2*time.Minute)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

func (p PublishConfig) Pace() time.Duration {
	if strings.TrimSpace(p.PaceEvery) == "" {
		return time.Second
	}
	d, err := ParseDurationField("publish.pace_every", p.PaceEvery)
	if err != nil {
		return time.Second
	}
	return d
}

func (s ScheduleConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func (s ScheduleConfig) Settle() time.Duration {
	d, err := ParseDurationOrDefault("schedule.settle_timeout", s.SettleTimeout, 5*time.Minute)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
