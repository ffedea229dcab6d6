package publish

import (
	"net/url"
	"strings"

	"awardbot/internal/pipeline"
)

const (
	tweetLimit   = 280
	captionLimit = 2200
)

// EncodeImageURL percent-encodes non-ASCII path segments so platform APIs
// accept image URLs with CJK file names. The query string is left alone.
func EncodeImageURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	encoded := u.Scheme + "://" + u.Host + strings.Join(parts, "/")
	if u.RawQuery != "" {
		encoded += "?" + u.RawQuery
	}
	return encoded
}

// FormatTweet prefers the model's pre-built twitter variant; otherwise it
// assembles title, body and up to three hashtags within the tweet limit.
func FormatTweet(post pipeline.SocialPost) string {
	c := post.Enriched
	if c != nil && c.Platform["twitter"] != "" {
		return clipRunes(c.Platform["twitter"], tweetLimit)
	}

	tags := post.Hashtags
	if len(tags) > 3 {
		tags = tags[:3]
	}
	hashtags := strings.Join(tags, " ")

	var text string
	if c != nil && c.TitleEN != "" {
		text = "🎉 " + c.TitleEN
		if c.BodyEN != "" {
			available := tweetLimit - len([]rune(hashtags)) - len([]rune(text)) - 10
			if available > 50 {
				text += "\n\n" + clipRunes(c.BodyEN, available)
			}
		}
	} else {
		text = "🎉 " + post.Title
	}

	return clipRunes(text+"\n\n"+hashtags, tweetLimit)
}

// FormatFacebook combines the zh and en copies into one page post.
func FormatFacebook(post pipeline.SocialPost) string {
	hashtags := strings.Join(post.Hashtags, " ")
	c := post.Enriched
	if c == nil {
		return "🎉 " + post.Title + "\n\n" + post.Body + "\n\n" + hashtags
	}
	return strings.Join([]string{
		"🎉 " + c.TitleZH,
		c.TitleEN,
		"",
		c.BodyZH,
		"",
		c.BodyEN,
		"",
		hashtags,
	}, "\n")
}

// FormatInstagram builds the caption: shortened bodies plus a fixed tag tail,
// within Instagram's caption limit.
func FormatInstagram(post pipeline.SocialPost) string {
	const tagTail = "#NYCU #AI #Research #Innovation #Taiwan #Award"
	hashtags := strings.Join(post.Hashtags, " ")

	var text string
	if c := post.Enriched; c != nil {
		text = strings.Join([]string{
			"🎉 " + c.TitleZH,
			c.TitleEN,
			"",
			clipRunes(c.BodyZH, 150),
			"",
			clipRunes(c.BodyEN, 150),
			"",
			hashtags,
			"",
			tagTail,
		}, "\n")
	} else {
		text = strings.Join([]string{
			"🎉 " + post.Title,
			"",
			clipRunes(post.Body, 250),
			"",
			hashtags,
			"",
			tagTail,
		}, "\n")
	}
	return clipRunes(text, captionLimit)
}

// FormatLinkedIn builds the bilingual share text.
func FormatLinkedIn(post pipeline.SocialPost) string {
	const (
		header  = "🎉 [陽明交通大學獲獎公告]\n🎉 [NYCU Award Announcement]"
		tagTail = "#NYCU #ArtificialIntelligence #Research #Innovation #Award"
	)
	hashtags := strings.Join(post.Hashtags, " ")

	if c := post.Enriched; c != nil {
		return strings.Join([]string{header, "", c.BodyZH, "", c.BodyEN, "", hashtags, "", tagTail}, "\n")
	}
	return strings.Join([]string{header, "", post.Title, "", post.Body, "", hashtags, "", tagTail}, "\n")
}

// FormatRedditTitle keeps reddit's 300 character title limit.
func FormatRedditTitle(post pipeline.SocialPost) string {
	title := post.Title
	if c := post.Enriched; c != nil && c.TitleEN != "" {
		title = c.TitleEN
	}
	return clipRunes("🎉 "+title, 300)
}

// FormatRedditBody builds the self-post text with a link back to the source.
func FormatRedditBody(post pipeline.SocialPost) string {
	var parts []string
	if c := post.Enriched; c != nil {
		if c.BodyEN != "" {
			parts = append(parts, c.BodyEN)
		}
		if c.BodyZH != "" {
			parts = append(parts, c.BodyZH)
		}
	} else {
		parts = append(parts, post.Body)
	}
	if post.URL != "" {
		parts = append(parts, "Source: "+post.URL)
	}
	return strings.Join(parts, "\n\n")
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if n < 0 {
		n = 0
	}
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
