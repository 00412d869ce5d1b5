package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// int64Seq は単調増加のID採番器。
// 採番したIDは削除後も再利用しない。
type int64Seq struct {
	current int64
	mutex   sync.Mutex
}

func (s *int64Seq) next() int64 {
	s.mutex.Lock()
	s.current++
	n := s.current
	s.mutex.Unlock()
	return n
}

// MemoryDB は全エンティティをプロセス内メモリに保持するストア実装。
// User/Session/Connection/Feedの各リポジトリインターフェースを1つの構造体で実装し、
// 単一のミューテックスで全操作を直列化する。これにより接続削除時の
// フィードCASCADE削除が呼び出し側から不可分に見えることを保証する。
// 格納するエンティティは読み書きの両方でコピーし、呼び出し側とのエイリアスを作らない。
type MemoryDB struct {
	mutex sync.Mutex

	usersByID       map[int64]*model.User
	usersByUsername map[string]*model.User
	userSeq         int64Seq

	sessionsByID map[string]*model.Session

	connectionsByID map[int64]*model.Connection
	connSeq         int64Seq

	feedsByID map[int64]*model.Feed
	feedSeq   int64Seq
}

// NewMemoryDB は空のMemoryDBを生成する。
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		usersByID:       make(map[int64]*model.User),
		usersByUsername: make(map[string]*model.User),
		sessionsByID:    make(map[string]*model.Session),
		connectionsByID: make(map[int64]*model.Connection),
		feedsByID:       make(map[int64]*model.Feed),
	}
}

// --- コピーヘルパー ---

func copyUser(src *model.User) *model.User {
	cp := *src
	return &cp
}

func copySession(src *model.Session) *model.Session {
	cp := *src
	return &cp
}

func copyConnection(src *model.Connection) *model.Connection {
	cp := *src
	if src.Projects != nil {
		cp.Projects = make([]string, len(src.Projects))
		copy(cp.Projects, src.Projects)
	}
	return &cp
}

func copyFeed(src *model.Feed) *model.Feed {
	cp := *src
	if src.Contents != nil {
		cp.Contents = make([]string, len(src.Contents))
		copy(cp.Contents, src.Contents)
	}
	if src.CompletedContents != nil {
		cp.CompletedContents = make([]string, len(src.CompletedContents))
		copy(cp.CompletedContents, src.CompletedContents)
	}
	return &cp
}

// --- UserRepository ---

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (m *MemoryDB) FindByID(ctx context.Context, id int64) (*model.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	user, ok := m.usersByID[id]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (m *MemoryDB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	user, ok := m.usersByUsername[username]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

// Create はユーザーを作成し、IDとCreatedAtを採番済みの完全なレコードを返す。
func (m *MemoryDB) Create(ctx context.Context, user *model.User) (*model.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := copyUser(user)
	stored.ID = m.userSeq.next()
	stored.CreatedAt = time.Now()

	m.usersByID[stored.ID] = stored
	m.usersByUsername[stored.Username] = stored

	return copyUser(stored), nil
}

// DeleteByID は指定IDのユーザーを削除する。存在しないIDの場合は何もしない。
func (m *MemoryDB) DeleteByID(ctx context.Context, id int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	user, ok := m.usersByID[id]
	if !ok {
		return nil
	}
	delete(m.usersByUsername, user.Username)
	delete(m.usersByID, id)
	return nil
}

// --- SessionRepository ---

// CreateSession はセッションを作成する。
func (m *MemoryDB) CreateSession(ctx context.Context, session *model.Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessionsByID[session.ID] = copySession(session)
	return nil
}

// FindSessionByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (m *MemoryDB) FindSessionByID(ctx context.Context, id string) (*model.Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, ok := m.sessionsByID[id]
	if !ok {
		return nil, nil
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return copySession(session), nil
}

// DeleteSessionByID は指定IDのセッションを削除する。
func (m *MemoryDB) DeleteSessionByID(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.sessionsByID, id)
	return nil
}

// DeleteSessionsByUserID は指定ユーザーの全セッションを削除する。
func (m *MemoryDB) DeleteSessionsByUserID(ctx context.Context, userID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, session := range m.sessionsByID {
		if session.UserID == userID {
			delete(m.sessionsByID, id)
		}
	}
	return nil
}

// DeleteExpiredSessions は期限切れセッションを削除し、削除件数を返す。
func (m *MemoryDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var deleted int64
	for id, session := range m.sessionsByID {
		if !session.ExpiresAt.After(now) {
			delete(m.sessionsByID, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- ConnectionRepository ---

// FindConnectionByID は指定IDの接続を取得する。見つからない場合はnilを返す。
func (m *MemoryDB) FindConnectionByID(ctx context.Context, id int64) (*model.Connection, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conn, ok := m.connectionsByID[id]
	if !ok {
		return nil, nil
	}
	return copyConnection(conn), nil
}

// ListConnectionsByUserID はユーザーの接続一覧を返す。並び順は保証しない。
func (m *MemoryDB) ListConnectionsByUserID(ctx context.Context, userID int64) ([]*model.Connection, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var conns []*model.Connection
	for _, conn := range m.connectionsByID {
		if conn.UserID == userID {
			conns = append(conns, copyConnection(conn))
		}
	}
	return conns, nil
}

// CountConnectionsByUserID はユーザーの接続数を返す。
func (m *MemoryDB) CountConnectionsByUserID(ctx context.Context, userID int64) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, conn := range m.connectionsByID {
		if conn.UserID == userID {
			count++
		}
	}
	return count, nil
}

// CreateConnection は接続を作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
func (m *MemoryDB) CreateConnection(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := copyConnection(conn)
	stored.ID = m.connSeq.next()
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.connectionsByID[stored.ID] = stored
	return copyConnection(stored), nil
}

// UpdateConnection は接続レコード全体を上書きし、UpdatedAtを更新する。
// 対象IDが存在しない場合はnilを返す。CreatedAtは保存済みの値を維持する。
func (m *MemoryDB) UpdateConnection(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	existing, ok := m.connectionsByID[conn.ID]
	if !ok {
		return nil, nil
	}

	stored := copyConnection(conn)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()

	m.connectionsByID[stored.ID] = stored
	return copyConnection(stored), nil
}

// DeleteConnectionByID は指定IDの接続を削除する。
// 関連するフィードを先に削除してから接続本体を削除する。
// 両削除は同一ロック内で行われ、呼び出し側からは不可分に見える。
// 存在しないIDの場合は何もしない。
func (m *MemoryDB) DeleteConnectionByID(ctx context.Context, id int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.deleteConnectionLocked(id)
	return nil
}

// DeleteConnectionsByUserID は指定ユーザーの全接続を関連フィードごと削除する。
func (m *MemoryDB) DeleteConnectionsByUserID(ctx context.Context, userID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, conn := range m.connectionsByID {
		if conn.UserID == userID {
			m.deleteConnectionLocked(id)
		}
	}
	return nil
}

// deleteConnectionLocked はロック保持中に接続と関連フィードを削除する。
func (m *MemoryDB) deleteConnectionLocked(id int64) {
	for feedID, feed := range m.feedsByID {
		if feed.ConnectionID == id {
			delete(m.feedsByID, feedID)
		}
	}
	delete(m.connectionsByID, id)
}

// --- FeedRepository ---

// FindFeedByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (m *MemoryDB) FindFeedByID(ctx context.Context, id int64) (*model.Feed, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	feed, ok := m.feedsByID[id]
	if !ok {
		return nil, nil
	}
	return copyFeed(feed), nil
}

// ListFeedsByUserID はユーザーのフィード一覧を返す。並び順は保証しない。
func (m *MemoryDB) ListFeedsByUserID(ctx context.Context, userID int64) ([]*model.Feed, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var feeds []*model.Feed
	for _, feed := range m.feedsByID {
		if feed.UserID == userID {
			feeds = append(feeds, copyFeed(feed))
		}
	}
	return feeds, nil
}

// ListFeedsByConnectionID は指定接続に紐づくフィード一覧を返す。
func (m *MemoryDB) ListFeedsByConnectionID(ctx context.Context, connectionID int64) ([]*model.Feed, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var feeds []*model.Feed
	for _, feed := range m.feedsByID {
		if feed.ConnectionID == connectionID {
			feeds = append(feeds, copyFeed(feed))
		}
	}
	return feeds, nil
}

// CreateFeed はフィードを作成し、IDと作成・更新時刻を採番済みの完全なレコードを返す。
func (m *MemoryDB) CreateFeed(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := copyFeed(feed)
	stored.ID = m.feedSeq.next()
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.feedsByID[stored.ID] = stored
	return copyFeed(stored), nil
}

// UpdateFeed はフィードレコード全体を上書きし、UpdatedAtを更新する。
// 対象IDが存在しない場合はnilを返す。CreatedAtは保存済みの値を維持する。
func (m *MemoryDB) UpdateFeed(ctx context.Context, feed *model.Feed) (*model.Feed, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	existing, ok := m.feedsByID[feed.ID]
	if !ok {
		return nil, nil
	}

	stored := copyFeed(feed)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()

	m.feedsByID[stored.ID] = stored
	return copyFeed(stored), nil
}

// DeleteFeedByID は指定IDのフィードを削除する。存在しないIDの場合は何もしない。
func (m *MemoryDB) DeleteFeedByID(ctx context.Context, id int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.feedsByID, id)
	return nil
}

// CountFeedsByUserID はユーザーのフィード数を返す。
func (m *MemoryDB) CountFeedsByUserID(ctx context.Context, userID int64) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, feed := range m.feedsByID {
		if feed.UserID == userID {
			count++
		}
	}
	return count, nil
}

// CountActiveFeedsByUserID はユーザーのアクティブなフィード数を返す。
func (m *MemoryDB) CountActiveFeedsByUserID(ctx context.Context, userID int64) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, feed := range m.feedsByID {
		if feed.UserID == userID && feed.Active {
			count++
		}
	}
	return count, nil
}

// SumNumSentByUserID はユーザーの全フィードの配信済みアイテム数の合計を返す。
func (m *MemoryDB) SumNumSentByUserID(ctx context.Context, userID int64) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sum := 0
	for _, feed := range m.feedsByID {
		if feed.UserID == userID {
			sum += feed.NumSent
		}
	}
	return sum, nil
}
