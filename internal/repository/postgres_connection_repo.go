package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/dripman/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した外部サービス接続リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

// FindByID は指定IDの接続を取得する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByID(ctx context.Context, id int64) (*model.Connection, error) {
	conn := &model.Connection{}
	var url, token, icon sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, url, token, status, user_id, icon, projects, created_at, updated_at
		 FROM connections WHERE id = $1`,
		id,
	).Scan(
		&conn.ID, &conn.Name, &url, &token, &conn.Status, &conn.UserID,
		&icon, pq.Array(&conn.Projects), &conn.CreatedAt, &conn.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
	}

	conn.URL = nullStringValue(url)
	conn.Token = nullStringValue(token)
	conn.Icon = nullStringValue(icon)

	return conn, nil
}

// ListByUserID はユーザーの接続一覧をID昇順で返す。
func (r *PostgresConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, url, token, status, user_id, icon, projects, created_at, updated_at
		 FROM connections WHERE user_id = $1 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		conn := &model.Connection{}
		var url, token, icon sql.NullString
		if err := rows.Scan(
			&conn.ID, &conn.Name, &url, &token, &conn.Status, &conn.UserID,
			&icon, pq.Array(&conn.Projects), &conn.CreatedAt, &conn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("接続行の読み取りに失敗しました: %w", err)
		}
		conn.URL = nullStringValue(url)
		conn.Token = nullStringValue(token)
		conn.Icon = nullStringValue(icon)
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("接続一覧の走査に失敗しました: %w", err)
	}
	return conns, nil
}

// CountByUserID はユーザーの接続数を返す。
func (r *PostgresConnectionRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("接続数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は接続を作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
// IDはBIGSERIALで単調増加に採番され、削除後も再利用されない。
func (r *PostgresConnectionRepo) Create(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	created := *conn
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO connections (name, url, token, status, user_id, icon, projects, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 RETURNING id, created_at, updated_at`,
		conn.Name, nullString(conn.URL), nullString(conn.Token), conn.Status,
		conn.UserID, nullString(conn.Icon), pq.Array(conn.Projects),
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("接続の作成に失敗しました: %w", err)
	}
	return &created, nil
}

// Update は接続レコード全体を上書きし、UpdatedAtを更新する。
// 対象IDが存在しない場合はnilを返す。user_idは変更しない。
func (r *PostgresConnectionRepo) Update(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	updated := *conn
	err := r.db.QueryRowContext(ctx,
		`UPDATE connections SET
		    name = $2, url = $3, token = $4, status = $5, icon = $6, projects = $7,
		    updated_at = now()
		 WHERE id = $1
		 RETURNING user_id, created_at, updated_at`,
		conn.ID, conn.Name, nullString(conn.URL), nullString(conn.Token),
		conn.Status, nullString(conn.Icon), pq.Array(conn.Projects),
	).Scan(&updated.UserID, &updated.CreatedAt, &updated.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("接続の更新に失敗しました: %w", err)
	}

	return &updated, nil
}

// DeleteByID は指定IDの接続を削除する。存在しないIDの場合は何もしない。
// 関連するフィードは外部キーのON DELETE CASCADEで同一文内で削除される。
func (r *PostgresConnectionRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("接続の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全接続を関連フィードごと削除する。
func (r *PostgresConnectionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全接続の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
