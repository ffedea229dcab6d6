package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
)

// LinkedIn shares via the ugcPosts API. The author is the configured
// organization, or the token owner resolved through /userinfo when no
// organization is set. The source article rides along as ARTICLE media.
type LinkedIn struct {
	cfg     config.LinkedInConfig
	client  *http.Client
	baseURL string

	mu     sync.Mutex
	author string // cached author urn
}

func NewLinkedIn(cfg config.LinkedInConfig) *LinkedIn {
	return &LinkedIn{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.linkedin.com/v2",
	}
}

func (l *LinkedIn) Platform() string { return "linkedin" }

func (l *LinkedIn) resolveAuthor(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.author != "" {
		return l.author, nil
	}
	if l.cfg.OrganizationID != "" {
		l.author = "urn:li:organization:" + l.cfg.OrganizationID
		return l.author, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var out struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Sub == "" {
		return "", fmt.Errorf("userinfo response has no subject")
	}
	l.author = "urn:li:person:" + out.Sub
	return l.author, nil
}

func (l *LinkedIn) Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult {
	if l.cfg.AccessToken == "" {
		return pipeline.Failure("linkedin", "credentials not configured")
	}

	author, err := l.resolveAuthor(ctx)
	if err != nil {
		return pipeline.Failure("linkedin", "resolve author: "+err.Error())
	}

	share := map[string]any{
		"shareCommentary":    map[string]string{"text": FormatLinkedIn(post)},
		"shareMediaCategory": "NONE",
	}
	if post.URL != "" {
		share["shareMediaCategory"] = "ARTICLE"
		share["media"] = []map[string]any{{
			"status":      "READY",
			"originalUrl": post.URL,
			"title":       map[string]string{"text": clipRunes(post.Title, 100)},
		}}
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": share,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pipeline.Failure("linkedin", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return pipeline.Failure("linkedin", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return pipeline.Failure("linkedin", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pipeline.Failure("linkedin",
			fmt.Sprintf("api returned %s: %s", resp.Status, strings.TrimSpace(string(raw))))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Failure("linkedin", "decode response: "+err.Error())
	}

	return pipeline.PublishResult{
		Success:  true,
		Platform: "linkedin",
		PostID:   out.ID,
		URL:      "https://www.linkedin.com/feed/update/" + out.ID + "/",
	}
}
