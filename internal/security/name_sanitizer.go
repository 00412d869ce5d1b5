// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はユーザー入力の表示名からHTMLタグを除去し、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名・説明文のサニタイズ機能のインターフェースを定義する。
// 接続・フィードの登録および更新時、名前・説明などの表示用フィールドの保存前に使用される。
// 配信本文（full_text）には適用しない。本文はユーザーが登録した通りの
// テキストを分割して配信するため、改変してはならない。
type NameSanitizerService interface {
	// Sanitize は入力文字列から全てのHTMLタグを除去したプレーンテキストを返す。
	// タグ除去後のHTMLエンティティは元の文字に戻し（"R&amp;D" → "R&D"）、
	// 前後の空白をトリムする。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列から全てのHTMLタグを除去したプレーンテキストを返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残存テキストをエンティティ化するため、表示名として
	// 保存する前に元の文字へ戻す。
	return strings.TrimSpace(html.UnescapeString(stripped))
}
