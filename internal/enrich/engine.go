package enrich

import (
	"context"
	"fmt"

	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

// Engine composes the per-field chat calls into one EnrichedContent. Each
// field degrades independently, so a partially failing model still yields a
// publishable result; a nil chatter yields the full template fallback.
type Engine struct {
	chat Chatter
	log  logx.Logger
}

func NewEngine(chat Chatter, log logx.Logger) *Engine {
	return &Engine{chat: chat, log: log}
}

// Generate always returns usable content; fallback reports whether any part
// of it came from the templates instead of the model.
func (e *Engine) Generate(ctx context.Context, ann pipeline.Announcement) (content *pipeline.EnrichedContent, fallback bool) {
	if e.chat == nil {
		return Fallback(ann), true
	}

	out := &pipeline.EnrichedContent{
		TitleZH:  ann.Title,
		Platform: map[string]string{},
	}

	bodyZH, err := e.chat.Chat(ctx, systemZH, fmt.Sprintf(userZH, ann.Title, ann.Body))
	if err != nil {
		e.log.Warn("zh generation failed, using original body", logx.Err(err))
		out.BodyZH = "🎉 恭喜！" + ann.Body
		fallback = true
	} else {
		out.BodyZH = cleanOutput(bodyZH)
	}

	rawEN, err := e.chat.Chat(ctx, systemEN, fmt.Sprintf(userEN, ann.Title, ann.Body))
	if err != nil {
		e.log.Warn("en generation failed, using templates", logx.Err(err))
		out.TitleEN = "Congratulations! " + ann.Title
		out.BodyEN = "🎉 Congratulations! We are proud to announce this achievement."
		fallback = true
	} else {
		rawEN = cleanOutput(rawEN)
		title, body := parseEnglish(rawEN)
		if title == "" {
			title = "Congratulations! " + ann.Title
		}
		if body == "" {
			body = rawEN
		}
		out.TitleEN = title
		out.BodyEN = body
	}

	rawTags, err := e.chat.Chat(ctx, systemHashtags,
		fmt.Sprintf("Title: %s\nContent: %s", ann.Title, ann.Body))
	if err != nil {
		e.log.Warn("hashtag generation failed, using defaults", logx.Err(err))
		out.HashtagsZH, out.HashtagsEN = defaultHashtagsZH, defaultHashtagsEN
		fallback = true
	} else {
		out.HashtagsZH, out.HashtagsEN = parseHashtags(cleanOutput(rawTags))
	}

	tweet, err := e.chat.Chat(ctx, systemTweet,
		fmt.Sprintf("Title: %s\nContent: %s", ann.Title, out.BodyEN))
	if err != nil {
		e.log.Warn("tweet generation failed, using template", logx.Err(err))
		out.Platform["twitter"] = "🎉 " + clipRunes(out.TitleEN, 200)
		fallback = true
	} else {
		out.Platform["twitter"] = clipRunes(cleanOutput(tweet), 280)
	}

	return out, fallback
}

// Fallback builds publishable content without any model call.
func Fallback(ann pipeline.Announcement) *pipeline.EnrichedContent {
	return &pipeline.EnrichedContent{
		TitleZH:    ann.Title,
		TitleEN:    "Congratulations! " + ann.Title,
		BodyZH:     "🎉 恭喜！" + ann.Body,
		BodyEN:     "🎉 Congratulations! We are proud to announce this achievement.",
		HashtagsZH: append([]string(nil), defaultHashtagsZH...),
		HashtagsEN: append([]string(nil), defaultHashtagsEN...),
		Platform: map[string]string{
			"twitter": "🎉 " + clipRunes(ann.Title, 200) + " #NYCU #AI #Award",
		},
	}
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
