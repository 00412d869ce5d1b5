// Package model はドメインモデルを定義する。
package model

import "time"

// Connection は外部サービス（Gmail, TickTick, Notion, Slack等）への接続を表す。
// 1つのConnectionは必ず1人のUserに属する。
type Connection struct {
	ID        int64
	Name      string
	URL       string
	Token     string
	Status    ConnectionStatus
	UserID    int64
	Icon      string
	Projects  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConnectionStatus は接続の疎通状態を表す。
type ConnectionStatus string

const (
	// StatusConnected は接続テストに成功した状態。
	StatusConnected ConnectionStatus = "Connected"
	// StatusDisconnected は未テストまたは接続テストに失敗した状態。
	StatusDisconnected ConnectionStatus = "Disconnected"
)
