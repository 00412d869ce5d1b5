package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/dripman/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	feed := &model.Feed{}
	var description, fullText, separator sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, full_text, contents, completed_contents,
		        separator, user_id, connection_id, num_sent, frequency, active,
		        created_at, updated_at
		 FROM feeds WHERE id = $1`,
		id,
	).Scan(
		&feed.ID, &feed.Name, &description, &fullText,
		pq.Array(&feed.Contents), pq.Array(&feed.CompletedContents),
		&separator, &feed.UserID, &feed.ConnectionID, &feed.NumSent,
		&feed.Frequency, &feed.Active, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	feed.Description = nullStringValue(description)
	feed.FullText = nullStringValue(fullText)
	feed.Separator = nullStringValue(separator)

	return feed, nil
}

// ListByUserID はユーザーのフィード一覧をID昇順で返す。
func (r *PostgresFeedRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, full_text, contents, completed_contents,
		        separator, user_id, connection_id, num_sent, frequency, active,
		        created_at, updated_at
		 FROM feeds WHERE user_id = $1 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed := &model.Feed{}
		var description, fullText, separator sql.NullString
		if err := rows.Scan(
			&feed.ID, &feed.Name, &description, &fullText,
			pq.Array(&feed.Contents), pq.Array(&feed.CompletedContents),
			&separator, &feed.UserID, &feed.ConnectionID, &feed.NumSent,
			&feed.Frequency, &feed.Active, &feed.CreatedAt, &feed.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フィード行の読み取りに失敗しました: %w", err)
		}
		feed.Description = nullStringValue(description)
		feed.FullText = nullStringValue(fullText)
		feed.Separator = nullStringValue(separator)
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// ListByConnectionID は指定接続に紐づくフィード一覧をID昇順で返す。
func (r *PostgresFeedRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, full_text, contents, completed_contents,
		        separator, user_id, connection_id, num_sent, frequency, active,
		        created_at, updated_at
		 FROM feeds WHERE connection_id = $1 ORDER BY id ASC`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("接続別フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed := &model.Feed{}
		var description, fullText, separator sql.NullString
		if err := rows.Scan(
			&feed.ID, &feed.Name, &description, &fullText,
			pq.Array(&feed.Contents), pq.Array(&feed.CompletedContents),
			&separator, &feed.UserID, &feed.ConnectionID, &feed.NumSent,
			&feed.Frequency, &feed.Active, &feed.CreatedAt, &feed.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("接続別フィード行の読み取りに失敗しました: %w", err)
		}
		feed.Description = nullStringValue(description)
		feed.FullText = nullStringValue(fullText)
		feed.Separator = nullStringValue(separator)
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("接続別フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// Create はフィードを作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
// IDはBIGSERIALで単調増加に採番され、削除後も再利用されない。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	created := *feed
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO feeds (name, description, full_text, contents, completed_contents,
		                    separator, user_id, connection_id, num_sent, frequency, active,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		 RETURNING id, created_at, updated_at`,
		feed.Name, nullString(feed.Description), nullString(feed.FullText),
		pq.Array(feed.Contents), pq.Array(feed.CompletedContents),
		nullString(feed.Separator), feed.UserID, feed.ConnectionID,
		feed.NumSent, feed.Frequency, feed.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return &created, nil
}

// Update はフィードレコード全体を上書きし、UpdatedAtを更新する。
// 対象IDが存在しない場合はnilを返す。user_idは変更しない。
func (r *PostgresFeedRepo) Update(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	updated := *feed
	err := r.db.QueryRowContext(ctx,
		`UPDATE feeds SET
		    name = $2, description = $3, full_text = $4,
		    contents = $5, completed_contents = $6, separator = $7,
		    connection_id = $8, num_sent = $9, frequency = $10, active = $11,
		    updated_at = now()
		 WHERE id = $1
		 RETURNING user_id, created_at, updated_at`,
		feed.ID, feed.Name, nullString(feed.Description), nullString(feed.FullText),
		pq.Array(feed.Contents), pq.Array(feed.CompletedContents),
		nullString(feed.Separator), feed.ConnectionID, feed.NumSent, feed.Frequency, feed.Active,
	).Scan(&updated.UserID, &updated.CreatedAt, &updated.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	return &updated, nil
}

// DeleteByID は指定IDのフィードを削除する。存在しないIDの場合は何もしない。
func (r *PostgresFeedRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// CountByUserID はユーザーのフィード数を返す。
func (r *PostgresFeedRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feeds WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フィード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountActiveByUserID はユーザーのアクティブなフィード数を返す。
func (r *PostgresFeedRepo) CountActiveByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feeds WHERE user_id = $1 AND active = TRUE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アクティブフィード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// SumNumSentByUserID はユーザーの全フィードの配信済みアイテム数の合計を返す。
func (r *PostgresFeedRepo) SumNumSentByUserID(ctx context.Context, userID int64) (int, error) {
	var sum int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(num_sent), 0) FROM feeds WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("配信済みアイテム数の集計に失敗しました: %w", err)
	}
	return sum, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
