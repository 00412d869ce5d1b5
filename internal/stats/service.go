// Package stats はダッシュボード統計の集計ロジックを提供する。
package stats

import (
	"context"
	"fmt"
)

// FeedCounter はフィードの集計インターフェース。
type FeedCounter interface {
	CountActiveByUserID(ctx context.Context, userID int64) (int, error)
	SumNumSentByUserID(ctx context.Context, userID int64) (int, error)
}

// ConnectionCounter は接続の集計インターフェース。
type ConnectionCounter interface {
	CountByUserID(ctx context.Context, userID int64) (int, error)
}

// Overview はダッシュボードに表示する統計値。
// 永続化せず、呼び出しのたびにリポジトリから集計する。
type Overview struct {
	ActiveFeeds      int
	ConnectedApps    int
	ContentDelivered int
}

// Service は統計集計のサービス層。
type Service struct {
	feeds       FeedCounter
	connections ConnectionCounter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(feeds FeedCounter, connections ConnectionCounter) *Service {
	return &Service{
		feeds:       feeds,
		connections: connections,
	}
}

// Overview は指定ユーザーの統計を集計して返す。
// active_feedsは有効なフィード数、connected_appsは登録済み接続数、
// content_deliveredは全フィードの送信済みアイテム数の合計。
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	activeFeeds, err := s.feeds.CountActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("有効フィード数の集計に失敗しました: %w", err)
	}

	connectedApps, err := s.connections.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("接続数の集計に失敗しました: %w", err)
	}

	contentDelivered, err := s.feeds.SumNumSentByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("送信済みアイテム数の集計に失敗しました: %w", err)
	}

	return &Overview{
		ActiveFeeds:      activeFeeds,
		ConnectedApps:    connectedApps,
		ContentDelivered: contentDelivered,
	}, nil
}
