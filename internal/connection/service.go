package connection

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/dripman/internal/model"
	"github.com/hitoshi/dripman/internal/repository"
)

// maxConnectionsPerUser はユーザーあたりの接続登録上限。
const maxConnectionsPerUser = 20

// URLValidator はURL検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Sanitizer は表示名サニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// CreateInput は接続作成の入力を表す。
type CreateInput struct {
	Name     string
	URL      string
	Token    string
	Icon     string
	Projects []string
}

// UpdatePatch は接続の部分更新を表す。nilのフィールドは変更しない。
type UpdatePatch struct {
	Name     *string
	URL      *string
	Token    *string
	Icon     *string
	Projects *[]string
}

// Service は外部サービス接続のサービス層。
// 登録・更新・削除・接続テストのビジネスロジックを提供する。
type Service struct {
	connRepo     repository.ConnectionRepository
	urlValidator URLValidator
	sanitizer    Sanitizer
	checker      Checker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	connRepo repository.ConnectionRepository,
	urlValidator URLValidator,
	sanitizer Sanitizer,
	checker Checker,
) *Service {
	return &Service{
		connRepo:     connRepo,
		urlValidator: urlValidator,
		sanitizer:    sanitizer,
		checker:      checker,
	}
}

// CreateConnection は接続を登録する。
// フロー: 登録上限チェック → 名前サニタイズ → URL検証 → 保存
// 新規接続のステータスはDisconnected（未テスト）で保存される。
func (s *Service) CreateConnection(ctx context.Context, userID int64, input CreateInput) (*model.Connection, error) {
	count, err := s.connRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("接続数の確認に失敗しました: %w", err)
	}
	if count >= maxConnectionsPerUser {
		return nil, model.NewConnectionLimitError()
	}

	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewNameRequiredError()
	}

	// URLの必須チェックはハンドラーが行う。ここでは渡された値のみ検証する。
	if input.URL != "" {
		if err := s.validateURL(input.URL); err != nil {
			return nil, err
		}
	}

	conn := &model.Connection{
		Name:     name,
		URL:      input.URL,
		Token:    input.Token,
		Status:   model.StatusDisconnected,
		UserID:   userID,
		Icon:     s.sanitizer.Sanitize(input.Icon),
		Projects: s.sanitizeProjects(input.Projects),
	}

	created, err := s.connRepo.Create(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("接続の保存に失敗しました: %w", err)
	}

	return created, nil
}

// GetConnection は接続を取得する。
// 他ユーザー所有の接続は存在を漏らさないため、未登録IDと同じエラーを返す。
func (s *Service) GetConnection(ctx context.Context, userID, connectionID int64) (*model.Connection, error) {
	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
	}
	if conn == nil {
		return nil, model.NewConnectionNotFoundError(connectionID)
	}
	if conn.UserID != userID {
		return nil, model.NewConnectionNotFoundError(connectionID)
	}
	return conn, nil
}

// ListConnections はユーザーの接続一覧を返す。
func (s *Service) ListConnections(ctx context.Context, userID int64) ([]*model.Connection, error) {
	conns, err := s.connRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}
	return conns, nil
}

// UpdateConnection は接続を部分更新する。
// パッチで指定されたフィールドのみ変更し、更新後の接続を返す。
func (s *Service) UpdateConnection(ctx context.Context, userID, connectionID int64, patch UpdatePatch) (*model.Connection, error) {
	conn, err := s.GetConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := s.sanitizer.Sanitize(*patch.Name)
		if name == "" {
			return nil, model.NewNameRequiredError()
		}
		conn.Name = name
	}
	if patch.URL != nil {
		if *patch.URL != "" {
			if err := s.validateURL(*patch.URL); err != nil {
				return nil, err
			}
		}
		conn.URL = *patch.URL
	}
	if patch.Token != nil {
		conn.Token = *patch.Token
	}
	if patch.Icon != nil {
		conn.Icon = s.sanitizer.Sanitize(*patch.Icon)
	}
	if patch.Projects != nil {
		conn.Projects = s.sanitizeProjects(*patch.Projects)
	}

	updated, err := s.connRepo.Update(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("接続の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewConnectionNotFoundError(connectionID)
	}

	return updated, nil
}

// DeleteConnection は接続を削除する。
// 依存するフィードもストア側でまとめて削除される。
func (s *Service) DeleteConnection(ctx context.Context, userID, connectionID int64) error {
	if _, err := s.GetConnection(ctx, userID, connectionID); err != nil {
		return err
	}

	if err := s.connRepo.DeleteByID(ctx, connectionID); err != nil {
		return fmt.Errorf("接続の削除に失敗しました: %w", err)
	}

	return nil
}

// TestConnection は接続テストを実行し、判定結果をステータスとして永続化する。
// 更新後の接続と判定結果を返す。
func (s *Service) TestConnection(ctx context.Context, userID, connectionID int64) (*model.Connection, *CheckResult, error) {
	conn, err := s.GetConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.checker.Check(ctx, conn)
	if err != nil {
		return nil, nil, model.NewConnectionTestFailedError(err.Error())
	}

	conn.Status = result.Status
	updated, err := s.connRepo.Update(ctx, conn)
	if err != nil {
		return nil, nil, fmt.Errorf("接続ステータスの保存に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, nil, model.NewConnectionNotFoundError(connectionID)
	}

	return updated, result, nil
}

// validateURL は接続先URLを検証する。
// 形式不備（パース不能・http/https以外のスキーム）はINVALID_URL、
// セキュリティポリシー上の到達禁止先はSSRF_BLOCKEDとして区別して返す。
func (s *Service) validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError(err.Error())
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return model.NewInvalidURLError("スキームはhttpまたはhttpsのみ有効です")
	}

	if err := s.urlValidator.ValidateURL(rawURL); err != nil {
		return model.NewSSRFBlockedError()
	}

	return nil
}

// sanitizeProjects はプロジェクト名の一覧をサニタイズし、空になった要素を除去する。
func (s *Service) sanitizeProjects(projects []string) []string {
	if len(projects) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(projects))
	for _, p := range projects {
		if v := s.sanitizer.Sanitize(p); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
