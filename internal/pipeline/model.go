// Package pipeline holds the data model shared across the announcement pipeline:
// scraped announcements, LLM-enriched copy, per-platform posts and publish results.
package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Announcement is one unit of content entering the pipeline, scraped from the
// news page. ID is a content fingerprint (see Fingerprint), not a random key,
// so the same article always maps to the same ID across restarts.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// Fingerprint derives the deterministic announcement ID from its content and
// publish date: award_<yyyymmdd>_<first 8 hex chars of md5(title+body)>.
func (a Announcement) Fingerprint() string {
	sum := md5.Sum([]byte(a.Title + a.Body))
	return "award_" + a.PublishedAt.Format("20060102") + "_" + hex.EncodeToString(sum[:])[:8]
}

// EnrichedContent is the LLM-generated social media copy for one announcement.
// Immutable once produced.
type EnrichedContent struct {
	TitleZH    string            `json:"title_zh"`
	TitleEN    string            `json:"title_en"`
	BodyZH     string            `json:"body_zh"`
	BodyEN     string            `json:"body_en"`
	HashtagsZH []string          `json:"hashtags_zh"`
	HashtagsEN []string          `json:"hashtags_en"`
	Platform   map[string]string `json:"platform,omitempty"` // platform name -> pre-formatted variant
}

// Hashtags merges the zh and en tag sets, deduplicated, zh first.
func (c EnrichedContent) Hashtags() []string {
	seen := make(map[string]struct{}, len(c.HashtagsZH)+len(c.HashtagsEN))
	out := make([]string, 0, len(c.HashtagsZH)+len(c.HashtagsEN))
	for _, set := range [][]string{c.HashtagsZH, c.HashtagsEN} {
		for _, t := range set {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// SocialPost is the platform-agnostic post handed to publishing endpoints.
// Endpoints pick their variant from Enriched.Platform or format their own.
type SocialPost struct {
	Title    string
	Body     string
	Hashtags []string
	URL      string
	ImageURL string
	Enriched *EnrichedContent
}

// PublishResult is the outcome of one publish attempt on one platform.
// Produced exactly once per (task, platform) pair.
type PublishResult struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	PostID   string `json:"post_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Failure builds a failed result for platform with the given reason.
func Failure(platform, reason string) PublishResult {
	return PublishResult{Success: false, Platform: platform, Err: reason}
}
