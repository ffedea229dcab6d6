package enrich

import (
	"regexp"
	"strings"
)

const systemZH = `你是陽明交通大學資訊學院的社交媒體編輯。
你的任務是將獲獎公告改寫成適合社交媒體發布的恭喜文章。

要求：
1. 保持正式但親切的語氣
2. 突出獲獎者的成就
3. 包含對學校和學院的正面形象
4. 適合在 Facebook、LinkedIn 等平台發布
5. 字數控制在 200 字以內`

const userZH = `請將以下獲獎公告改寫成社交媒體恭喜貼文：

標題：%s

原文：%s

請直接輸出改寫後的內容，不需要其他說明。`

const systemEN = `You are a social media editor for National Yang Ming Chiao Tung University (NYCU).
Your task is to create an English congratulatory post for award announcements.

Requirements:
1. Professional yet warm tone
2. Highlight the achievement
3. Keep it concise (under 150 words)
4. Suitable for Twitter, LinkedIn, and international audiences
5. Include the English translation of Chinese names in pinyin format (e.g., 王大明 -> Wang Da-Ming)`

const userEN = `Please create an English social media post for this award announcement:

Title: %s

Content: %s

Output format:
TITLE: [English title]
CONTENT: [English content]`

const systemHashtags = `Generate relevant hashtags for a university award announcement.
Output exactly 5 Chinese hashtags and 5 English hashtags.

Format:
ZH: #tag1 #tag2 #tag3 #tag4 #tag5
EN: #tag1 #tag2 #tag3 #tag4 #tag5`

const systemTweet = `Create a tweet (max 250 characters) for this announcement.
Use English only. Include 2-3 relevant hashtags.
Be concise and impactful.`

var (
	defaultHashtagsZH = []string{"#陽明交大", "#資訊學院", "#獲獎", "#人工智慧", "#研究"}
	defaultHashtagsEN = []string{"#NYCU", "#AI", "#Award", "#Research", "#Achievement"}
)

var (
	thinkBlock   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkBlockZH = regexp.MustCompile(`(?s)\[思考\].*?\[/思考\]`)
	thinkBlockEN = regexp.MustCompile(`(?is)\[thinking\].*?\[/thinking\]`)
	hashtagZH    = regexp.MustCompile(`#[0-9A-Za-z_\p{Han}]+`)
	hashtagEN    = regexp.MustCompile(`#\w+`)
)

// cleanOutput strips reasoning-model thought blocks from a reply.
func cleanOutput(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = thinkBlockZH.ReplaceAllString(text, "")
	text = thinkBlockEN.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// parseEnglish extracts the TITLE:/CONTENT: lines. A missing title falls back
// to empty; the caller substitutes its own defaults.
func parseEnglish(result string) (title, content string) {
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "TITLE:") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
		} else if strings.HasPrefix(line, "CONTENT:") {
			rest := strings.Join(lines[i:], "\n")
			content = strings.TrimSpace(strings.TrimPrefix(rest, "CONTENT:"))
			break
		}
	}
	return title, content
}

// parseHashtags extracts the ZH:/EN: tag lines, keeping at most five per
// language. Missing or empty lines yield the defaults.
func parseHashtags(result string) (zh, en []string) {
	zh, en = defaultHashtagsZH, defaultHashtagsEN
	for _, line := range strings.Split(result, "\n") {
		if strings.HasPrefix(line, "ZH:") {
			if tags := hashtagZH.FindAllString(line, -1); len(tags) > 0 {
				zh = cap5(tags)
			}
		} else if strings.HasPrefix(line, "EN:") {
			if tags := hashtagEN.FindAllString(line, -1); len(tags) > 0 {
				en = cap5(tags)
			}
		}
	}
	return zh, en
}

func cap5(tags []string) []string {
	if len(tags) > 5 {
		return tags[:5]
	}
	return tags
}
