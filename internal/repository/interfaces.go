// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成し、IDとCreatedAtを採番済みの完全なレコードを返す。
	// IDは単調増加で採番され、削除後も再利用されない。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。存在しないIDの場合は何もしない。
	DeleteByID(ctx context.Context, id int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	// クリーンアップジョブから定期的に呼ばれる。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ConnectionRepository は外部サービス接続データの永続化インターフェース。
type ConnectionRepository interface {
	// FindByID は指定IDの接続を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Connection, error)

	// ListByUserID はユーザーの接続一覧を返す。並び順は保証しない。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Connection, error)

	// CountByUserID はユーザーの接続数を返す。
	CountByUserID(ctx context.Context, userID int64) (int, error)

	// Create は接続を作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
	// IDは単調増加で採番され、削除後も再利用されない。
	Create(ctx context.Context, conn *model.Connection) (*model.Connection, error)

	// Update は接続レコード全体を上書きし、UpdatedAtを更新する。
	// 対象IDが存在しない場合はnilを返す。
	Update(ctx context.Context, conn *model.Connection) (*model.Connection, error)

	// DeleteByID は指定IDの接続を削除する。
	// 関連するフィードもCASCADE削除され、呼び出し側からは不可分に見える。
	// 存在しないIDの場合は何もしない。
	DeleteByID(ctx context.Context, id int64) error

	// DeleteByUserID は指定ユーザーの全接続を関連フィードごと削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
}

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Feed, error)

	// ListByUserID はユーザーのフィード一覧を返す。並び順は保証しない。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Feed, error)

	// ListByConnectionID は指定接続に紐づくフィード一覧を返す。
	ListByConnectionID(ctx context.Context, connectionID int64) ([]*model.Feed, error)

	// CountByUserID はユーザーのフィード数を返す。
	CountByUserID(ctx context.Context, userID int64) (int, error)

	// Create はフィードを作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
	// IDは単調増加で採番され、削除後も再利用されない。
	Create(ctx context.Context, feed *model.Feed) (*model.Feed, error)

	// Update はフィードレコード全体を上書きし、UpdatedAtを更新する。
	// 対象IDが存在しない場合はnilを返す。
	Update(ctx context.Context, feed *model.Feed) (*model.Feed, error)

	// DeleteByID は指定IDのフィードを削除する。存在しないIDの場合は何もしない。
	DeleteByID(ctx context.Context, id int64) error

	// CountActiveByUserID はユーザーのアクティブなフィード数を返す。
	CountActiveByUserID(ctx context.Context, userID int64) (int, error)

	// SumNumSentByUserID はユーザーの全フィードの配信済みアイテム数の合計を返す。
	SumNumSentByUserID(ctx context.Context, userID int64) (int, error)
}
