// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, connection, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeInvalidRegistration  = "INVALID_REGISTRATION"
	ErrCodeUsernameTaken        = "USERNAME_TAKEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeConnectionNotFound   = "CONNECTION_NOT_FOUND"
	ErrCodeFeedNotFound         = "FEED_NOT_FOUND"
	ErrCodeNameRequired         = "NAME_REQUIRED"
	ErrCodeFullTextRequired     = "FULL_TEXT_REQUIRED"
	ErrCodeInvalidSeparator     = "INVALID_SEPARATOR"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeInvalidFrequency     = "INVALID_FREQUENCY"
	ErrCodeConnectionLimit      = "CONNECTION_LIMIT_EXCEEDED"
	ErrCodeFeedLimit            = "FEED_LIMIT_EXCEEDED"
	ErrCodeConnectionTestFailed = "CONNECTION_TEST_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名の存在有無を漏らさないよう、未登録とパスワード不一致で同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewConnectionNotFoundError は接続が見つからない場合のエラーを生成する。
// 他ユーザー所有の接続に対しても存在を漏らさないため同じエラーを返す。
func NewConnectionNotFoundError(connectionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionNotFound,
		Message:  fmt.Sprintf("指定された接続が見つかりません: %d", connectionID),
		Category: "connection",
		Action:   "接続IDを確認してください。",
	}
}

// NewFeedNotFoundError はフィードが見つからない場合のエラーを生成する。
// 他ユーザー所有のフィードに対しても存在を漏らさないため同じエラーを返す。
func NewFeedNotFoundError(feedID int64) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %d", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewInvalidRegistrationError はユーザー登録入力の検証エラーを生成する。
func NewInvalidRegistrationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRegistration,
		Message:  fmt.Sprintf("登録内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewNameRequiredError は名前未入力エラーを生成する。
func NewNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNameRequired,
		Message:  "名前が入力されていません。",
		Category: "validation",
		Action:   "名前を入力してください。",
	}
}

// NewFullTextRequiredError は本文未入力エラーを生成する。
func NewFullTextRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFullTextRequired,
		Message:  "本文が入力されていません。",
		Category: "validation",
		Action:   "配信する本文を入力してください。",
	}
}

// NewInvalidSeparatorError は区切り文字未指定エラーを生成する。
func NewInvalidSeparatorError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSeparator,
		Message:  "区切り文字が指定されていません。",
		Category: "validation",
		Action:   "本文を分割する区切り文字を指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているサービスのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidFrequencyError は無効な配信頻度エラーを生成する。
func NewInvalidFrequencyError(frequency string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFrequency,
		Message:  fmt.Sprintf("無効な配信頻度です: %s", frequency),
		Category: "validation",
		Action:   "配信頻度には Daily、Weekly、Monthly のいずれかを指定してください。",
	}
}

// NewConnectionLimitError は接続数上限エラーを生成する。
func NewConnectionLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeConnectionLimit,
		Message:  "登録できる接続数の上限に達しています。",
		Category: "connection",
		Action:   "使用していない接続を削除してから再度お試しください。",
	}
}

// NewFeedLimitError はフィード数上限エラーを生成する。
func NewFeedLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedLimit,
		Message:  "登録できるフィード数の上限に達しています。",
		Category: "feed",
		Action:   "使用していないフィードを削除してから再度お試しください。",
	}
}

// NewConnectionTestFailedError は接続テスト失敗エラーを生成する。
func NewConnectionTestFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionTestFailed,
		Message:  fmt.Sprintf("接続テストに失敗しました: %s", reason),
		Category: "connection",
		Action:   "トークンとURLを確認して再度お試しください。",
	}
}
