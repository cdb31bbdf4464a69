package app

import "errors"

// Sentinel errors carry the user-facing message directly; the HTTP layer
// maps them to status codes and returns the text as-is.
var (
	ErrAuthRequired        = errors.New("請先登入")
	ErrGoalNotFound        = errors.New("找不到目標")
	ErrCooldownActive      = errors.New("每 24 小時只能生成一封信")
	ErrMalformedAIResponse = errors.New("AI 回應格式錯誤")
	ErrPersistence         = errors.New("儲存信件失敗")

	ErrEmailTaken         = errors.New("此電子郵件已被註冊")
	ErrInvalidCredentials = errors.New("電子郵件或密碼錯誤")
	ErrLetterNotFound     = errors.New("找不到信件")
	ErrJournalNotFound    = errors.New("找不到日誌")
	ErrCollectNotFound    = errors.New("找不到收藏")
)
