package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
)

// Reddit submits self posts with a script-app password grant. The bearer
// token is cached until shortly before it expires.
type Reddit struct {
	cfg       config.RedditConfig
	client    *http.Client
	authURL   string
	oauthURL  string
	userAgent string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewReddit(cfg config.RedditConfig) *Reddit {
	agent := cfg.UserAgent
	if agent == "" {
		agent = "awardbot/1.0"
	}
	return &Reddit{
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
		authURL:   "https://www.reddit.com",
		oauthURL:  "https://oauth.reddit.com",
		userAgent: agent,
	}
}

func (r *Reddit) Platform() string { return "reddit" }

func (r *Reddit) hasCredentials() bool {
	return r.cfg.ClientID != "" && r.cfg.ClientSecret != "" &&
		r.cfg.Username != "" && r.cfg.Password != ""
}

func (r *Reddit) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return r.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {r.cfg.Username},
		"password":   {r.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no token")
	}

	r.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	r.tokenExpiry = time.Now().Add(ttl - 30*time.Second)
	return r.token, nil
}

func (r *Reddit) Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult {
	if !r.hasCredentials() {
		return pipeline.Failure("reddit", "credentials not configured")
	}
	subreddit := r.cfg.Subreddit
	if subreddit == "" {
		subreddit = "test"
	}

	token, err := r.accessToken(ctx)
	if err != nil {
		return pipeline.Failure("reddit", "auth: "+err.Error())
	}

	form := url.Values{
		"sr":       {subreddit},
		"kind":     {"self"},
		"title":    {FormatRedditTitle(post)},
		"text":     {FormatRedditBody(post)},
		"api_type": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.oauthURL+"/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return pipeline.Failure("reddit", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return pipeline.Failure("reddit", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pipeline.Failure("reddit", "submit returned "+resp.Status)
	}

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Failure("reddit", "decode response: "+err.Error())
	}
	if len(out.JSON.Errors) > 0 {
		return pipeline.Failure("reddit", fmt.Sprintf("api errors: %v", out.JSON.Errors))
	}

	return pipeline.PublishResult{
		Success:  true,
		Platform: "reddit",
		PostID:   out.JSON.Data.ID,
		URL:      out.JSON.Data.URL,
	}
}
