package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
)

const graphAPIVersion = "v21.0"

// Facebook posts to a page via the Graph API: a photo post when the
// announcement carries an image, a plain feed post otherwise.
type Facebook struct {
	cfg     config.FacebookConfig
	client  *http.Client
	baseURL string
}

func NewFacebook(cfg config.FacebookConfig) *Facebook {
	return &Facebook{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://graph.facebook.com/" + graphAPIVersion,
	}
}

func (f *Facebook) Platform() string { return "facebook" }

func (f *Facebook) Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult {
	if f.cfg.PageID == "" || f.cfg.AccessToken == "" {
		return pipeline.Failure("facebook", "credentials not configured")
	}

	message := FormatFacebook(post)

	if post.ImageURL != "" {
		form := url.Values{
			"url":          {EncodeImageURL(post.ImageURL)},
			"caption":      {message},
			"access_token": {f.cfg.AccessToken},
		}
		id, err := f.graphPost(ctx, "/"+f.cfg.PageID+"/photos", form)
		if err != nil {
			return pipeline.Failure("facebook", err.Error())
		}
		return pipeline.PublishResult{
			Success:  true,
			Platform: "facebook",
			PostID:   id,
			URL:      "https://www.facebook.com/photo.php?fbid=" + id,
		}
	}

	form := url.Values{
		"message":      {message},
		"access_token": {f.cfg.AccessToken},
	}
	id, err := f.graphPost(ctx, "/"+f.cfg.PageID+"/feed", form)
	if err != nil {
		return pipeline.Failure("facebook", err.Error())
	}
	return pipeline.PublishResult{
		Success:  true,
		Platform: "facebook",
		PostID:   id,
		URL:      "https://www.facebook.com/" + strings.Replace(id, "_", "/posts/", 1),
	}
}

func (f *Facebook) graphPost(ctx context.Context, path string, form url.Values) (string, error) {
	return graphPost(ctx, f.client, f.baseURL+path, form)
}

// graphPost submits an urlencoded form to a Graph API endpoint and returns
// the created object id. Shared with the Instagram endpoint.
func graphPost(ctx context.Context, client *http.Client, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode graph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := resp.Status
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("graph api: %s", msg)
	}
	if out.ID == "" {
		return "", fmt.Errorf("graph api: no id in response")
	}
	return out.ID, nil
}
