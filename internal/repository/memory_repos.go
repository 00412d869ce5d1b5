package repository

import (
	"context"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// MemoryUserRepo はMemoryDBをUserRepositoryとして公開するビュー。
// 各エンティティのリポジトリインターフェースはメソッド名が重複するため、
// 共有コアへ委譲する薄いビュー型として実装する。
type MemoryUserRepo struct {
	db *MemoryDB
}

// Users はUserRepositoryビューを返す。
func (m *MemoryDB) Users() *MemoryUserRepo {
	return &MemoryUserRepo{db: m}
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.db.FindByID(ctx, id)
}

func (r *MemoryUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.db.FindByUsername(ctx, username)
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	return r.db.Create(ctx, user)
}

func (r *MemoryUserRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.db.DeleteByID(ctx, id)
}

// MemorySessionRepo はMemoryDBをSessionRepositoryとして公開するビュー。
type MemorySessionRepo struct {
	db *MemoryDB
}

// Sessions はSessionRepositoryビューを返す。
func (m *MemoryDB) Sessions() *MemorySessionRepo {
	return &MemorySessionRepo{db: m}
}

func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	return r.db.CreateSession(ctx, session)
}

func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return r.db.FindSessionByID(ctx, id)
}

func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	return r.db.DeleteSessionByID(ctx, id)
}

func (r *MemorySessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.DeleteSessionsByUserID(ctx, userID)
}

func (r *MemorySessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.db.DeleteExpiredSessions(ctx, now)
}

// MemoryConnectionRepo はMemoryDBをConnectionRepositoryとして公開するビュー。
type MemoryConnectionRepo struct {
	db *MemoryDB
}

// Connections はConnectionRepositoryビューを返す。
func (m *MemoryDB) Connections() *MemoryConnectionRepo {
	return &MemoryConnectionRepo{db: m}
}

func (r *MemoryConnectionRepo) FindByID(ctx context.Context, id int64) (*model.Connection, error) {
	return r.db.FindConnectionByID(ctx, id)
}

func (r *MemoryConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Connection, error) {
	return r.db.ListConnectionsByUserID(ctx, userID)
}

func (r *MemoryConnectionRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	return r.db.CountConnectionsByUserID(ctx, userID)
}

func (r *MemoryConnectionRepo) Create(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	return r.db.CreateConnection(ctx, conn)
}

func (r *MemoryConnectionRepo) Update(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	return r.db.UpdateConnection(ctx, conn)
}

func (r *MemoryConnectionRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.db.DeleteConnectionByID(ctx, id)
}

func (r *MemoryConnectionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.DeleteConnectionsByUserID(ctx, userID)
}

// MemoryFeedRepo はMemoryDBをFeedRepositoryとして公開するビュー。
type MemoryFeedRepo struct {
	db *MemoryDB
}

// Feeds はFeedRepositoryビューを返す。
func (m *MemoryDB) Feeds() *MemoryFeedRepo {
	return &MemoryFeedRepo{db: m}
}

func (r *MemoryFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	return r.db.FindFeedByID(ctx, id)
}

func (r *MemoryFeedRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Feed, error) {
	return r.db.ListFeedsByUserID(ctx, userID)
}

func (r *MemoryFeedRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*model.Feed, error) {
	return r.db.ListFeedsByConnectionID(ctx, connectionID)
}

func (r *MemoryFeedRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	return r.db.CountFeedsByUserID(ctx, userID)
}

func (r *MemoryFeedRepo) Create(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	return r.db.CreateFeed(ctx, feed)
}

func (r *MemoryFeedRepo) Update(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	return r.db.UpdateFeed(ctx, feed)
}

func (r *MemoryFeedRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.db.DeleteFeedByID(ctx, id)
}

func (r *MemoryFeedRepo) CountActiveByUserID(ctx context.Context, userID int64) (int, error) {
	return r.db.CountActiveFeedsByUserID(ctx, userID)
}

func (r *MemoryFeedRepo) SumNumSentByUserID(ctx context.Context, userID int64) (int, error) {
	return r.db.SumNumSentByUserID(ctx, userID)
}

// compile-time interface checks
var (
	_ UserRepository       = (*MemoryUserRepo)(nil)
	_ SessionRepository    = (*MemorySessionRepo)(nil)
	_ ConnectionRepository = (*MemoryConnectionRepo)(nil)
	_ FeedRepository       = (*MemoryFeedRepo)(nil)
)
