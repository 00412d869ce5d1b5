// Package model はドメインモデルを定義する。
package model

import "time"

// Feed は配信用コンテンツのまとまりを表す。
// FullTextをSeparatorで分割した結果がContentsであり、
// NumSentは配信済みアイテム数、CompletedContentsは配信済みアイテムの並びを保持する。
type Feed struct {
	ID                int64
	Name              string
	Description       string
	FullText          string
	Contents          []string
	CompletedContents []string
	Separator         string
	UserID            int64
	ConnectionID      int64
	NumSent           int
	Frequency         FeedFrequency
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FeedFrequency はフィードの配信頻度を表す。
type FeedFrequency string

const (
	// FrequencyDaily は毎日配信する頻度。
	FrequencyDaily FeedFrequency = "Daily"
	// FrequencyWeekly は毎週配信する頻度。
	FrequencyWeekly FeedFrequency = "Weekly"
	// FrequencyMonthly は毎月配信する頻度。
	FrequencyMonthly FeedFrequency = "Monthly"
)

// ValidFrequency は配信頻度が定義済みの値かを検証する。
func ValidFrequency(f FeedFrequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}
