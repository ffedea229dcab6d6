package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
)

// Twitter posts tweets through the v2 API with an OAuth2 user token.
type Twitter struct {
	cfg     config.TwitterConfig
	client  *http.Client
	baseURL string
}

func NewTwitter(cfg config.TwitterConfig) *Twitter {
	return &Twitter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.x.com/2",
	}
}

func (t *Twitter) Platform() string { return "twitter" }

func (t *Twitter) token() string {
	if t.cfg.BearerToken != "" {
		return t.cfg.BearerToken
	}
	return t.cfg.AccessToken
}

func (t *Twitter) Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult {
	token := t.token()
	if token == "" {
		return pipeline.Failure("twitter", "credentials not configured")
	}

	body, err := json.Marshal(map[string]string{"text": FormatTweet(post)})
	if err != nil {
		return pipeline.Failure("twitter", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return pipeline.Failure("twitter", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return pipeline.Failure("twitter", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pipeline.Failure("twitter",
			fmt.Sprintf("api returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Failure("twitter", "decode response: "+err.Error())
	}
	if out.Data.ID == "" {
		return pipeline.Failure("twitter", "no tweet id in response")
	}

	return pipeline.PublishResult{
		Success:  true,
		Platform: "twitter",
		PostID:   out.Data.ID,
		URL:      "https://twitter.com/i/web/status/" + out.Data.ID,
	}
}
