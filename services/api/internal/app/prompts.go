package app

import (
	"fmt"
	"strings"

	"goaljournal/pkg/domain"
)

const (
	// Fixed wording for the very first letter of a goal. The AI still
	// drafts the body, but title and signature are policy, not content.
	goalCreatedTitle     = "來自未來的問候"
	goalCreatedSignature = "每天寫信給你的未來的自己"
)

const goalCreatedSystemPrompt = `你是一位充滿智慧與同理心的未來自己，正在寫一封信給剛設定目標的現在的自己。
你的語氣要溫暖、鼓勵，但也要務實，讓讀者感受到支持與理解。
請以 JSON 格式回應，包含以下欄位：
{
  "title": "簡短有力的標題，要呼應他的目標",
  "greeting": "溫暖的問候語",
  "content": "以未來的視角，分享這個目標如何改變了你的生活，以及感謝現在的自己踏出了這一步",
  "reflection_question": "一個能引導深入思考的問題，讓他更了解自己為什麼想要達成這個目標",
  "signature": "未來的你"
}`

const dailyFeedbackSystemPrompt = `你是一位充滿智慧與同理心的未來自己，正在寫一封信給現在的自己。
你的語氣要溫暖、鼓勵，同時也要有洞察力，能從日誌與收藏中發現微小但重要的進步。
請以 JSON 格式回應，包含以下欄位：
{
  "title": "簡短有力的標題，要呼應最近的進展",
  "greeting": "溫暖的問候語",
  "content": "以未來的視角，分享你看到的進步與成長。不要過度強調時間，而是專注在這些改變的意義",
  "reflection_question": "一個能引導深入思考的問題，幫助他更了解自己的成長",
  "signature": "未來的你"
}`

const weeklyReviewSystemPrompt = `你是一位充滿智慧與同理心的未來自己，正在寫一封信給現在的自己。
你的語氣要溫暖、鼓勵，同時也要有洞察力，能從一週的記錄中發現成長的軌跡。
請以 JSON 格式回應，包含以下欄位：
{
  "title": "簡短有力的標題，要呼應這段時間的成長",
  "greeting": "溫暖的問候語",
  "content": "以未來的視角，分享你看到的轉變與突破。不要過度強調時間，而是專注在這些改變帶來的意義",
  "reflection_question": "一個能引導深入思考的問題，幫助他更了解自己的成長方向",
  "signature": "未來的你"
}`

// letterPrompts renders the system and user prompt pair for one generation.
func letterPrompts(letterType domain.LetterType, goalTitle string, journals []domain.JournalEntry, collects []domain.Collect) (string, string) {
	switch letterType {
	case domain.LetterGoalCreated:
		user := fmt.Sprintf("目標：%s\n請以未來的自己的角度，寫一封信給剛開始這個目標的自己。請確保回應是有效的 JSON 格式。", goalTitle)
		return goalCreatedSystemPrompt, user

	case domain.LetterDailyFeedback:
		user := fmt.Sprintf("目標：%s\n\n最近的日誌：\n%s\n\n最近的收藏：\n%s\n\n請以未來的自己的角度，分析這些內容並寫一封信給現在的自己。請確保回應是有效的 JSON 格式。",
			goalTitle, renderJournals(journals), renderCollects(collects))
		return dailyFeedbackSystemPrompt, user

	default:
		user := fmt.Sprintf("目標：%s\n\n本週的日誌：\n%s\n\n本週的收藏：\n%s\n\n請以未來的自己的角度，分析這一週的內容並寫一封信給現在的自己。請確保回應是有效的 JSON 格式。",
			goalTitle, renderJournals(journals), renderCollects(collects))
		return weeklyReviewSystemPrompt, user
	}
}

func renderJournals(journals []domain.JournalEntry) string {
	parts := make([]string, 0, len(journals))
	for _, j := range journals {
		parts = append(parts, fmt.Sprintf("- %s\n%s", j.Title, j.Content))
	}
	return strings.Join(parts, "\n\n")
}

func renderCollects(collects []domain.Collect) string {
	parts := make([]string, 0, len(collects))
	for _, c := range collects {
		label := c.Caption
		if c.Type == domain.CollectText {
			label = c.Content
		}
		if label == "" {
			label = "未命名收藏"
		}
		parts = append(parts, "- "+label)
	}
	return strings.Join(parts, "\n")
}
