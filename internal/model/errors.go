package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, timer, system
	Action   string // ユーザー向け対処方法
	Cause    error  // ログ用の元エラー。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeTimerNotFound  = "TIMER_NOT_FOUND"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
)

// NewValidationError は必須項目の欠落や形式不正を表すエラーを生成する。
// 呼び出し元は入力を修正して再送できる。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認して再度送信してください。",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewTimerNotFoundError はタイマーが見つからない場合のエラーを生成する。
func NewTimerNotFoundError(timerID string) *APIError {
	return &APIError{
		Code:     ErrCodeTimerNotFound,
		Message:  fmt.Sprintf("指定されたタイマーが見つかりません: %s", timerID),
		Category: "timer",
		Action:   "タイマーIDを確認してください。",
	}
}

// NewStoreError はデータストアの接続・クエリ失敗を表すエラーを生成する。
// サーバー側では再試行しない。
func NewStoreError(op string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStore,
		Message:  fmt.Sprintf("データストアの操作に失敗しました: %s", op),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は分類できない内部エラーのレスポンス用エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
