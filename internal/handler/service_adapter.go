package handler

import (
	"context"
	"strings"

	"github.com/hitoshi/dripman/internal/auth"
	"github.com/hitoshi/dripman/internal/connection"
	"github.com/hitoshi/dripman/internal/feed"
	"github.com/hitoshi/dripman/internal/model"
	"github.com/hitoshi/dripman/internal/stats"
	"github.com/hitoshi/dripman/internal/user"
)

// AuthServiceAdapter は auth.Service を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.Service
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.Service) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// Register は新規ユーザーを作成し、セッションを開始する。
func (a *AuthServiceAdapter) Register(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error) {
	return a.svc.Register(ctx, auth.RegisterInput{
		Username: username,
		Password: password,
		Email:    email,
		Name:     name,
	})
}

// Login は資格情報を検証し、セッションを開始する。
func (a *AuthServiceAdapter) Login(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	return a.svc.Login(ctx, username, password)
}

// Logout はセッションを破棄する。
func (a *AuthServiceAdapter) Logout(ctx context.Context, sessionID string) error {
	return a.svc.Logout(ctx, sessionID)
}

// GetCurrentUser はセッションIDから現在のユーザーを取得する。
func (a *AuthServiceAdapter) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return a.svc.GetCurrentUser(ctx, sessionID)
}

// ConnectionMetricsRecorder は接続系メトリクスの記録インターフェース。
type ConnectionMetricsRecorder interface {
	RecordConnectionTest(result string)
}

// ConnectionServiceAdapter は connection.Service を ConnectionServiceInterface に適合させるアダプタ。
// metricsがnilでない場合、接続テストの結果をメトリクスとして記録する。
type ConnectionServiceAdapter struct {
	svc     *connection.Service
	metrics ConnectionMetricsRecorder
}

// NewConnectionServiceAdapter はConnectionServiceAdapterを生成する。
func NewConnectionServiceAdapter(svc *connection.Service, metrics ConnectionMetricsRecorder) *ConnectionServiceAdapter {
	return &ConnectionServiceAdapter{svc: svc, metrics: metrics}
}

// ListConnections はユーザーの接続一覧をhandlerレスポンス型で返す。
func (a *ConnectionServiceAdapter) ListConnections(ctx context.Context, userID int64) ([]connectionResponse, error) {
	conns, err := a.svc.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]connectionResponse, len(conns))
	for i, conn := range conns {
		results[i] = toConnectionResponse(conn)
	}
	return results, nil
}

// CreateConnection は接続を登録しhandlerレスポンス型で返す。
func (a *ConnectionServiceAdapter) CreateConnection(ctx context.Context, userID int64, req createConnectionRequest) (*connectionResponse, error) {
	conn, err := a.svc.CreateConnection(ctx, userID, connection.CreateInput{
		Name:     req.Name,
		URL:      req.URL,
		Token:    req.Token,
		Icon:     req.Icon,
		Projects: req.Projects,
	})
	if err != nil {
		return nil, err
	}
	resp := toConnectionResponse(conn)
	return &resp, nil
}

// GetConnection は接続をhandlerレスポンス型で返す。
func (a *ConnectionServiceAdapter) GetConnection(ctx context.Context, userID, connectionID int64) (*connectionResponse, error) {
	conn, err := a.svc.GetConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	resp := toConnectionResponse(conn)
	return &resp, nil
}

// UpdateConnection は接続を部分更新しhandlerレスポンス型で返す。
func (a *ConnectionServiceAdapter) UpdateConnection(ctx context.Context, userID, connectionID int64, req updateConnectionRequest) (*connectionResponse, error) {
	conn, err := a.svc.UpdateConnection(ctx, userID, connectionID, connection.UpdatePatch{
		Name:     req.Name,
		URL:      req.URL,
		Token:    req.Token,
		Icon:     req.Icon,
		Projects: req.Projects,
	})
	if err != nil {
		return nil, err
	}
	resp := toConnectionResponse(conn)
	return &resp, nil
}

// DeleteConnection は接続と紐づくフィードを削除する。
func (a *ConnectionServiceAdapter) DeleteConnection(ctx context.Context, userID, connectionID int64) error {
	return a.svc.DeleteConnection(ctx, userID, connectionID)
}

// TestConnection は接続テストを実行しhandlerレスポンス型で返す。
func (a *ConnectionServiceAdapter) TestConnection(ctx context.Context, userID, connectionID int64) (*connectionTestResponse, error) {
	conn, result, err := a.svc.TestConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordConnectionTest(strings.ToLower(string(result.Status)))
	}

	return &connectionTestResponse{
		Connection: toConnectionResponse(conn),
		Result: connectionTestResultResponse{
			Status:  string(result.Status),
			Message: result.Message,
		},
	}, nil
}

// toConnectionResponse はmodel.ConnectionからAPIレスポンスに変換する。
// トークンは書き込み専用のため含めない。
func toConnectionResponse(conn *model.Connection) connectionResponse {
	return connectionResponse{
		ID:        conn.ID,
		Name:      conn.Name,
		URL:       conn.URL,
		Status:    string(conn.Status),
		Icon:      conn.Icon,
		Projects:  conn.Projects,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}

// FeedMetricsRecorder はフィード系メトリクスの記録インターフェース。
type FeedMetricsRecorder interface {
	RecordFeedCreated()
	RecordContentItems(count int)
}

// FeedServiceAdapter は feed.Service を FeedServiceInterface に適合させるアダプタ。
// metricsがnilでない場合、フィード作成数と分割アイテム数をメトリクスとして記録する。
type FeedServiceAdapter struct {
	svc     *feed.Service
	metrics FeedMetricsRecorder
}

// NewFeedServiceAdapter はFeedServiceAdapterを生成する。
func NewFeedServiceAdapter(svc *feed.Service, metrics FeedMetricsRecorder) *FeedServiceAdapter {
	return &FeedServiceAdapter{svc: svc, metrics: metrics}
}

// ListFeeds はユーザーのフィード一覧をhandlerレスポンス型で返す。
func (a *FeedServiceAdapter) ListFeeds(ctx context.Context, userID int64) ([]feedResponse, error) {
	feeds, err := a.svc.ListFeeds(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]feedResponse, len(feeds))
	for i, f := range feeds {
		results[i] = toFeedResponse(f)
	}
	return results, nil
}

// CreateFeed はフィードを登録しhandlerレスポンス型で返す。
func (a *FeedServiceAdapter) CreateFeed(ctx context.Context, userID int64, req createFeedRequest) (*feedResponse, error) {
	f, err := a.svc.CreateFeed(ctx, userID, feed.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		FullText:     req.FullText,
		Separator:    req.Separator,
		ConnectionID: req.ConnectionID,
		Frequency:    req.Frequency,
		Active:       req.Active,
	})
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordFeedCreated()
		a.metrics.RecordContentItems(len(f.Contents))
	}

	resp := toFeedResponse(f)
	return &resp, nil
}

// GetFeed はフィードをhandlerレスポンス型で返す。
func (a *FeedServiceAdapter) GetFeed(ctx context.Context, userID, feedID int64) (*feedResponse, error) {
	f, err := a.svc.GetFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}
	resp := toFeedResponse(f)
	return &resp, nil
}

// UpdateFeed はフィードを部分更新しhandlerレスポンス型で返す。
func (a *FeedServiceAdapter) UpdateFeed(ctx context.Context, userID, feedID int64, req updateFeedRequest) (*feedResponse, error) {
	f, err := a.svc.UpdateFeed(ctx, userID, feedID, feed.UpdatePatch{
		Name:         req.Name,
		Description:  req.Description,
		FullText:     req.FullText,
		Separator:    req.Separator,
		ConnectionID: req.ConnectionID,
		NumSent:      req.NumSent,
		Frequency:    req.Frequency,
		Active:       req.Active,
	})
	if err != nil {
		return nil, err
	}
	resp := toFeedResponse(f)
	return &resp, nil
}

// DeleteFeed はフィードを削除する。
func (a *FeedServiceAdapter) DeleteFeed(ctx context.Context, userID, feedID int64) error {
	return a.svc.DeleteFeed(ctx, userID, feedID)
}

// ToggleFeed はフィードの有効・無効を切り替えhandlerレスポンス型で返す。
func (a *FeedServiceAdapter) ToggleFeed(ctx context.Context, userID, feedID int64) (*feedResponse, error) {
	f, err := a.svc.ToggleFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}
	resp := toFeedResponse(f)
	return &resp, nil
}

// toFeedResponse はmodel.FeedからAPIレスポンスに変換する。
// 配信進捗（total, completion_percent）はここで導出する。
func toFeedResponse(f *model.Feed) feedResponse {
	return feedResponse{
		ID:                f.ID,
		Name:              f.Name,
		Description:       f.Description,
		FullText:          f.FullText,
		Separator:         f.Separator,
		Contents:          f.Contents,
		CompletedContents: f.CompletedContents,
		ConnectionID:      f.ConnectionID,
		NumSent:           f.NumSent,
		Total:             len(f.Contents),
		Frequency:         string(f.Frequency),
		Active:            f.Active,
		CompletionPercent: feed.CompletionPercent(f),
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// StatsServiceAdapter は stats.Service を StatsServiceInterface に適合させるアダプタ。
type StatsServiceAdapter struct {
	svc *stats.Service
}

// NewStatsServiceAdapter はStatsServiceAdapterを生成する。
func NewStatsServiceAdapter(svc *stats.Service) *StatsServiceAdapter {
	return &StatsServiceAdapter{svc: svc}
}

// Overview はダッシュボード統計をhandlerレスポンス型で返す。
func (a *StatsServiceAdapter) Overview(ctx context.Context, userID int64) (*statsResponse, error) {
	overview, err := a.svc.Overview(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &statsResponse{
		ActiveFeeds:      overview.ActiveFeeds,
		ConnectedApps:    overview.ConnectedApps,
		ContentDelivered: overview.ContentDelivered,
	}, nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// GetProfile はユーザープロフィールをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetProfile(ctx context.Context, userID int64) (*userResponse, error) {
	u, err := a.svc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID int64) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*AuthServiceAdapter)(nil)
var _ ConnectionServiceInterface = (*ConnectionServiceAdapter)(nil)
var _ FeedServiceInterface = (*FeedServiceAdapter)(nil)
var _ StatsServiceInterface = (*StatsServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
