// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Passwordにはbcryptハッシュを格納し、APIレスポンスには含めない。
type User struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
