// Package feed はドリップフィード登録・管理のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"

	"github.com/hitoshi/dripman/internal/content"
	"github.com/hitoshi/dripman/internal/model"
	"github.com/hitoshi/dripman/internal/repository"
)

// maxFeedsPerUser はユーザーあたりのフィード登録上限。
const maxFeedsPerUser = 100

// Sanitizer は表示名サニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// CreateInput はフィード作成の入力を表す。
type CreateInput struct {
	Name         string
	Description  string
	FullText     string
	Separator    string
	ConnectionID int64
	Frequency    string
	Active       *bool
}

// UpdatePatch はフィードの部分更新を表す。nilのフィールドは変更しない。
// 所属ユーザーは作成時に固定され、パッチでは変更できない。
// 接続の付け替えは可能だが、移動先も同一ユーザー所有でなければならない。
type UpdatePatch struct {
	Name         *string
	Description  *string
	FullText     *string
	Separator    *string
	ConnectionID *int64
	NumSent      *int
	Frequency    *string
	Active       *bool
}

// Service はドリップフィードのサービス層。
// 作成・更新・削除・有効切替と、本文分割・進捗整合の維持を担う。
type Service struct {
	feedRepo  repository.FeedRepository
	connRepo  repository.ConnectionRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	feedRepo repository.FeedRepository,
	connRepo repository.ConnectionRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		feedRepo:  feedRepo,
		connRepo:  connRepo,
		sanitizer: sanitizer,
	}
}

// CreateFeed はフィードを登録する。
// フロー: 登録上限チェック → 名前サニタイズ → 接続の所有チェック →
// 本文分割 → 保存
// 本文はセパレータで分割され、配信アイテム一覧（contents）として保存される。
// 配信済み数は0から始まる。
func (s *Service) CreateFeed(ctx context.Context, userID int64, input CreateInput) (*model.Feed, error) {
	count, err := s.feedRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フィード数の確認に失敗しました: %w", err)
	}
	if count >= maxFeedsPerUser {
		return nil, model.NewFeedLimitError()
	}

	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewNameRequiredError()
	}

	// 接続の所有チェック: 他ユーザー所有・未登録IDのどちらも同じエラーを返す
	conn, err := s.connRepo.FindByID(ctx, input.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
	}
	if conn == nil || conn.UserID != userID {
		return nil, model.NewConnectionNotFoundError(input.ConnectionID)
	}

	frequency := model.FrequencyDaily
	if input.Frequency != "" {
		frequency = model.FeedFrequency(input.Frequency)
		if !model.ValidFrequency(frequency) {
			return nil, model.NewInvalidFrequencyError(input.Frequency)
		}
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	contents := content.Split(input.FullText, input.Separator)

	feed := &model.Feed{
		Name:              name,
		Description:       s.sanitizer.Sanitize(input.Description),
		FullText:          input.FullText,
		Contents:          contents,
		CompletedContents: content.CompletedSlice(contents, 0),
		Separator:         input.Separator,
		UserID:            userID,
		ConnectionID:      input.ConnectionID,
		NumSent:           0,
		Frequency:         frequency,
		Active:            active,
	}

	created, err := s.feedRepo.Create(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	return created, nil
}

// GetFeed はフィードを取得する。
// 他ユーザー所有のフィードは存在を漏らさないため、未登録IDと同じエラーを返す。
func (s *Service) GetFeed(ctx context.Context, userID, feedID int64) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	if feed.UserID != userID {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	return feed, nil
}

// ListFeeds はユーザーのフィード一覧を返す。
func (s *Service) ListFeeds(ctx context.Context, userID int64) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// UpdateFeed はフィードを部分更新する。
// full_textとseparatorの両方が同一パッチで指定された場合のみ、
// 配信アイテム一覧（contents）を再分割する。片方だけの変更では
// 保存済みのcontentsを維持する。
// 更新後は常に配信済み数を[0, len(contents)]へ丸め、
// completed_contentsをcontentsの先頭prefixとして再導出する。
func (s *Service) UpdateFeed(ctx context.Context, userID, feedID int64, patch UpdatePatch) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}

	// 再分割の判定はマージ前にパッチの値だけで行う
	recompute := patch.FullText != nil && patch.Separator != nil
	var newContents []string
	if recompute {
		newContents = content.Split(*patch.FullText, *patch.Separator)
	}

	if patch.Name != nil {
		name := s.sanitizer.Sanitize(*patch.Name)
		if name == "" {
			return nil, model.NewNameRequiredError()
		}
		feed.Name = name
	}
	if patch.Description != nil {
		feed.Description = s.sanitizer.Sanitize(*patch.Description)
	}
	if patch.FullText != nil {
		feed.FullText = *patch.FullText
	}
	if patch.Separator != nil {
		feed.Separator = *patch.Separator
	}
	if patch.ConnectionID != nil {
		// 移動先の接続も所有チェックを通す
		conn, err := s.connRepo.FindByID(ctx, *patch.ConnectionID)
		if err != nil {
			return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
		}
		if conn == nil || conn.UserID != userID {
			return nil, model.NewConnectionNotFoundError(*patch.ConnectionID)
		}
		feed.ConnectionID = *patch.ConnectionID
	}
	if patch.Frequency != nil {
		frequency := model.FeedFrequency(*patch.Frequency)
		if !model.ValidFrequency(frequency) {
			return nil, model.NewInvalidFrequencyError(*patch.Frequency)
		}
		feed.Frequency = frequency
	}
	if patch.Active != nil {
		feed.Active = *patch.Active
	}
	if patch.NumSent != nil {
		feed.NumSent = *patch.NumSent
	}

	if recompute {
		feed.Contents = newContents
	}

	feed.NumSent = content.ClampNumSent(feed.NumSent, len(feed.Contents))
	feed.CompletedContents = content.CompletedSlice(feed.Contents, feed.NumSent)

	updated, err := s.feedRepo.Update(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}

	return updated, nil
}

// ToggleFeed はフィードの配信有効フラグを反転する。
// activeフラグと更新時刻以外のフィールドは変更しない。
func (s *Service) ToggleFeed(ctx context.Context, userID, feedID int64) (*model.Feed, error) {
	feed, err := s.GetFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}

	feed.Active = !feed.Active

	updated, err := s.feedRepo.Update(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}

	return updated, nil
}

// DeleteFeed はフィードを削除する。
func (s *Service) DeleteFeed(ctx context.Context, userID, feedID int64) error {
	if _, err := s.GetFeed(ctx, userID, feedID); err != nil {
		return err
	}

	if err := s.feedRepo.DeleteByID(ctx, feedID); err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}

	return nil
}

// CompletionPercent はフィードの配信進捗率（0〜100の整数）を返す。
func CompletionPercent(feed *model.Feed) int {
	return content.CompletionPercent(feed.NumSent, len(feed.Contents))
}
