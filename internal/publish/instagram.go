package publish

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
)

// Instagram publishes through the Graph API's two-step flow: create a media
// container, then publish it. An announcement without an image cannot be
// posted here at all.
type Instagram struct {
	cfg     config.InstagramConfig
	client  *http.Client
	baseURL string
}

func NewInstagram(cfg config.InstagramConfig) *Instagram {
	return &Instagram{
		cfg:     cfg,
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: "https://graph.facebook.com/" + graphAPIVersion,
	}
}

func (i *Instagram) Platform() string { return "instagram" }

func (i *Instagram) Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult {
	if i.cfg.AccountID == "" || i.cfg.AccessToken == "" {
		return pipeline.Failure("instagram", "credentials not configured")
	}
	if post.ImageURL == "" {
		return pipeline.Failure("instagram", "image required")
	}

	containerID, err := graphPost(ctx, i.client, i.baseURL+"/"+i.cfg.AccountID+"/media", url.Values{
		"image_url":    {EncodeImageURL(post.ImageURL)},
		"caption":      {FormatInstagram(post)},
		"media_type":   {"IMAGE"},
		"access_token": {i.cfg.AccessToken},
	})
	if err != nil {
		return pipeline.Failure("instagram", "create media: "+err.Error())
	}

	postID, err := graphPost(ctx, i.client, i.baseURL+"/"+i.cfg.AccountID+"/media_publish", url.Values{
		"creation_id":  {containerID},
		"access_token": {i.cfg.AccessToken},
	})
	if err != nil {
		return pipeline.Failure("instagram", "publish media: "+err.Error())
	}

	return pipeline.PublishResult{
		Success:  true,
		Platform: "instagram",
		PostID:   postID,
		URL:      "https://www.instagram.com/p/" + postID + "/",
	}
}
