// Package content はフィード本文の分割と配信進捗の算出を提供する。
// すべて純粋関数であり、同一入力に対して常に同一の結果を返す。
package content

import (
	"math"
	"strings"
)

// separatorAliases はUIから渡されるエスケープ表記の区切り文字を実際の文字列に解決する。
// "\n"（バックスラッシュ+n の2文字）は改行1つ、"\n\n"（4文字）は空行（改行2つ）を表す。
// それ以外の区切り文字（"---"、";"、"," 等）はリテラルとしてそのまま使用する。
var separatorAliases = map[string]string{
	`\n`:   "\n",
	`\n\n`: "\n\n",
}

// ResolveSeparator はエスケープ表記の区切り文字を分割に使う実際の文字列へ解決する。
func ResolveSeparator(separator string) string {
	if resolved, ok := separatorAliases[separator]; ok {
		return resolved
	}
	return separator
}

// Split はfullTextをseparatorで分割し、各要素の前後空白を除去した上で
// 空要素を取り除いた順序付きリストを返す。
// fullTextが空、または解決後の区切り文字が空の場合は空リストを返す（エラーにはしない）。
func Split(fullText, separator string) []string {
	sep := ResolveSeparator(separator)
	if fullText == "" || sep == "" {
		return nil
	}

	segments := strings.Split(fullText, sep)
	items := make([]string, 0, len(segments))
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}

	if len(items) == 0 {
		return nil
	}
	return items
}

// ClampNumSent は配信済み数を [0, total] の範囲に丸める。
func ClampNumSent(numSent, total int) int {
	if numSent < 0 {
		return 0
	}
	if numSent > total {
		return total
	}
	return numSent
}

// CompletionPercent は配信進捗を0〜100の整数で返す。
// totalが0の場合はゼロ除算を避けて0を返す。
func CompletionPercent(numSent, total int) int {
	if total <= 0 {
		return 0
	}
	sent := ClampNumSent(numSent, total)
	return int(math.Round(float64(sent) / float64(total) * 100))
}

// CompletedSlice は配信済みアイテムの並び（contentsの先頭からnumSent件）を返す。
// 返り値は元スライスと独立したコピー。配信済みが0件の場合は空リストを返す。
func CompletedSlice(contents []string, numSent int) []string {
	n := ClampNumSent(numSent, len(contents))
	completed := make([]string, n)
	copy(completed, contents[:n])
	return completed
}
