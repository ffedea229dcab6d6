// Package scraper watches the news listing page for award announcements.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"awardbot/internal/config"
	"awardbot/internal/pipeline"
	"awardbot/internal/store"
	logx "awardbot/pkg/logx"
)

const (
	defaultNewsPath = "/category/hot-news/"
	defaultAgent    = "awardbot/1.0"

	// maxEntries bounds how many listing entries one scan inspects.
	maxEntries = 10
	// bodyLimit truncates fetched article bodies (runes).
	bodyLimit = 1000
)

// defaultKeywords mark an entry as an award announcement when any of them
// appears in title or summary.
var defaultKeywords = []string{
	"賀", "恭賀", "恭喜", "獲獎", "獲得", "榮獲", "榮膺",
	"當選", "獲選", "入選", "得獎", "第一", "冠軍", "亞軍",
	"優等", "特優", "佳作", "優勝", "表揚", "殊榮", "榮譽",
	"最佳", "傑出", "優秀",
}

// Scanner fetches the listing page, keeps award entries, pulls each one's
// full body and first image, and filters out already-processed IDs.
// Every failure degrades to "nothing found"; a scan never returns an error.
type Scanner struct {
	client    *http.Client
	listURL   string
	siteRoot  string
	keywords  []string
	userAgent string
	processed store.ProcessedSet // nil disables dedup
	log       logx.Logger
}

// NewScanner builds a scanner for the configured source. processed may be nil.
func NewScanner(cfg config.SourceConfig, processed store.ProcessedSet, log logx.Logger) *Scanner {
	path := cfg.NewsPath
	if path == "" {
		path = defaultNewsPath
	}
	listURL := strings.TrimRight(cfg.BaseURL, "/") + path

	siteRoot := cfg.BaseURL
	if u, err := url.Parse(listURL); err == nil {
		siteRoot = u.Scheme + "://" + u.Host
	}

	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultAgent
	}

	return &Scanner{
		client:    &http.Client{Timeout: cfg.FetchTimeout()},
		listURL:   listURL,
		siteRoot:  siteRoot,
		keywords:  keywords,
		userAgent: agent,
		processed: processed,
		log:       log,
	}
}

// Scan returns the new award announcements on the listing page, oldest last,
// in page order. Processed IDs are skipped but not re-marked; marking happens
// after the announcement is actually forwarded.
func (s *Scanner) Scan(ctx context.Context) []pipeline.Announcement {
	doc, err := s.fetchDocument(ctx, s.listURL)
	if err != nil {
		s.log.Error("listing fetch failed", logx.String("url", s.listURL), logx.Err(err))
		return nil
	}

	var found []pipeline.Announcement
	doc.Find("article").EachWithBreak(func(i int, article *goquery.Selection) bool {
		if i >= maxEntries {
			return false
		}
		ann, ok := s.parseEntry(ctx, article)
		if !ok {
			return true
		}
		if s.processed != nil {
			done, err := s.processed.IsProcessed(ctx, ann.ID)
			if err != nil {
				s.log.Warn("processed lookup failed", logx.String("id", ann.ID), logx.Err(err))
			} else if done {
				s.log.Debug("skipping processed announcement", logx.String("id", ann.ID))
				return true
			}
		}
		found = append(found, ann)
		return true
	})

	s.log.Info("scan finished",
		logx.String("url", s.listURL),
		logx.Int("new", len(found)))
	return found
}

func (s *Scanner) parseEntry(ctx context.Context, article *goquery.Selection) (pipeline.Announcement, bool) {
	link := article.Find("h2.entry-title a").First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return pipeline.Announcement{}, false
	}
	href = s.absoluteURL(href)
	if dec, err := url.PathUnescape(href); err == nil {
		href = dec
	}

	summary := strings.TrimSpace(article.Find("div.entry-summary").First().Text())
	if summary == "" {
		summary = strings.TrimSpace(article.Find("div.entry-content").First().Text())
	}

	if !s.isAward(title + " " + summary) {
		s.log.Debug("skipping non-award entry", logx.String("title", clip(title, 30)))
		return pipeline.Announcement{}, false
	}

	body := summary
	var imageURL string
	// Summaries are often cut off mid-sentence; fetch the article page for
	// the full body and the first content image.
	if page, err := s.fetchDocument(ctx, href); err != nil {
		s.log.Warn("article fetch failed", logx.String("url", href), logx.Err(err))
	} else {
		if full := extractBody(page); full != "" && utf8.RuneCountInString(body) < 50 {
			body = full
		}
		imageURL = s.extractImage(page)
	}
	if body == "" {
		body = title
	}

	ann := pipeline.Announcement{
		Title:       title,
		Body:        body,
		URL:         href,
		PublishedAt: extractDate(article),
		ImageURL:    imageURL,
	}
	ann.ID = ann.Fingerprint()

	s.log.Info("found award announcement",
		logx.String("id", ann.ID),
		logx.String("title", clip(title, 60)))
	return ann, true
}

func (s *Scanner) isAward(text string) bool {
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (s *Scanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *Scanner) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.siteRoot + href
}

// extractBody pulls the article text out of the content div, scripts and
// styles removed, truncated to bodyLimit runes.
func extractBody(doc *goquery.Document) string {
	content := doc.Find("div.entry-content").First()
	if content.Length() == 0 {
		return ""
	}
	content.Find("script,style").Remove()

	var parts []string
	for _, line := range strings.Split(content.Text(), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			parts = append(parts, t)
		}
	}
	return clip(strings.Join(parts, "\n"), bodyLimit)
}

func (s *Scanner) extractImage(doc *goquery.Document) string {
	content := doc.Find("div.entry-content").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		return ""
	}

	img := content.Find("img").First()
	if img.Length() == 0 {
		img = content.Find("figure img").First()
	}
	src, _ := img.Attr("src")
	if src == "" {
		return ""
	}
	return s.absoluteURL(src)
}

func extractDate(article *goquery.Selection) time.Time {
	dt, _ := article.Find("time.entry-date.published").First().Attr("datetime")
	if dt != "" {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05", dt); err == nil {
			return t
		}
	}
	return time.Now()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
