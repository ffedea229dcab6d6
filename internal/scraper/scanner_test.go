package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"awardbot/internal/config"
	logx "awardbot/pkg/logx"
)

const listingHTML = `<!doctype html>
<html><body>
<article>
  <h2 class="entry-title"><a href="/2026/03/prize">賀！本系團隊榮獲國際競賽冠軍</a></h2>
  <div class="entry-summary">短摘要</div>
  <time class="entry-date published" datetime="2026-03-14T10:00:00+08:00">2026-03-14</time>
</article>
<article>
  <h2 class="entry-title"><a href="/2026/03/seminar">三月份專題演講公告</a></h2>
  <div class="entry-summary">歡迎參加本月演講活動，地點與時間詳見內文。</div>
</article>
</body></html>`

const articleHTML = `<!doctype html>
<html><body>
<div class="entry-content">
  <script>var tracker = 1;</script>
  <p>恭喜資工系團隊於國際程式設計競賽中脫穎而出，獲得冠軍殊榮。</p>
  <p>團隊成員表現優異，指導教授表示與有榮焉。</p>
  <img src="/uploads/獲獎合照.jpg" alt="team">
</div>
</body></html>`

type fakeSet struct {
	ids map[string]bool
}

func (f *fakeSet) IsProcessed(_ context.Context, id string) (bool, error) { return f.ids[id], nil }
func (f *fakeSet) MarkProcessed(_ context.Context, id string) error {
	f.ids[id] = true
	return nil
}
func (f *fakeSet) Count(context.Context) (int, error) { return len(f.ids), nil }
func (f *fakeSet) Close() error                       { return nil }

func newsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/category/hot-news"):
			_, _ = w.Write([]byte(listingHTML))
		case strings.HasPrefix(r.URL.Path, "/2026/03/prize"):
			_, _ = w.Write([]byte(articleHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScanFindsAwardEntriesOnly(t *testing.T) {
	t.Parallel()

	srv := newsServer(t)
	sc := NewScanner(config.SourceConfig{BaseURL: srv.URL}, nil, logx.Nop())

	found := sc.Scan(context.Background())
	if len(found) != 1 {
		t.Fatalf("found %d announcements, want 1", len(found))
	}
	ann := found[0]
	if !strings.Contains(ann.Title, "冠軍") {
		t.Fatalf("unexpected title %q", ann.Title)
	}
	if !strings.HasPrefix(ann.ID, "award_20260314_") {
		t.Fatalf("fingerprint %q does not carry the publish date", ann.ID)
	}
	if !strings.Contains(ann.Body, "脫穎而出") {
		t.Fatalf("full body not fetched, got %q", ann.Body)
	}
	if strings.Contains(ann.Body, "tracker") {
		t.Fatalf("script text leaked into body: %q", ann.Body)
	}
	if !strings.HasSuffix(ann.ImageURL, "/uploads/獲獎合照.jpg") {
		t.Fatalf("image url = %q", ann.ImageURL)
	}
	if !strings.HasPrefix(ann.ImageURL, srv.URL) {
		t.Fatalf("relative image url not absolutized: %q", ann.ImageURL)
	}
}

func TestScanFetchesFullBodyForShortCJKSummary(t *testing.T) {
	t.Parallel()

	// 26 characters, well past 50 bytes in UTF-8. The short-summary check
	// counts runes, so this must still trigger the full article fetch.
	const listing = `<!doctype html>
<html><body>
<article>
  <h2 class="entry-title"><a href="/2026/03/prize">賀！本系團隊榮獲國際競賽冠軍</a></h2>
  <div class="entry-summary">恭喜資工系團隊於國際競賽中獲得冠軍，詳細內容請見全文</div>
  <time class="entry-date published" datetime="2026-03-14T10:00:00+08:00">2026-03-14</time>
</article>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/category/hot-news"):
			_, _ = w.Write([]byte(listing))
		case strings.HasPrefix(r.URL.Path, "/2026/03/prize"):
			_, _ = w.Write([]byte(articleHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	sc := NewScanner(config.SourceConfig{BaseURL: srv.URL}, nil, logx.Nop())
	found := sc.Scan(context.Background())
	if len(found) != 1 {
		t.Fatalf("found %d announcements, want 1", len(found))
	}
	if !strings.Contains(found[0].Body, "脫穎而出") {
		t.Fatalf("summary kept instead of full body: %q", found[0].Body)
	}
}

func TestScanSkipsProcessed(t *testing.T) {
	t.Parallel()

	srv := newsServer(t)
	set := &fakeSet{ids: map[string]bool{}}
	sc := NewScanner(config.SourceConfig{BaseURL: srv.URL}, set, logx.Nop())

	first := sc.Scan(context.Background())
	if len(first) != 1 {
		t.Fatalf("first scan found %d, want 1", len(first))
	}
	if err := set.MarkProcessed(context.Background(), first[0].ID); err != nil {
		t.Fatal(err)
	}

	if again := sc.Scan(context.Background()); len(again) != 0 {
		t.Fatalf("second scan re-announced %d entries", len(again))
	}
}

func TestScanSurvivesDeadSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	sc := NewScanner(config.SourceConfig{BaseURL: srv.URL}, nil, logx.Nop())
	if found := sc.Scan(context.Background()); len(found) != 0 {
		t.Fatalf("scan of dead source returned %d entries", len(found))
	}
}
