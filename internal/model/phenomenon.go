package model

import "time"

// Sentiment is the discrete sentiment label assigned to a piece of text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Category is a survey category. Start/End, when set, define the survey
// window used for temporal relevance scoring.
type Category struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Region is an administrative region (kabupaten/kota).
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Phenomenon is a user-submitted observation of a social or economic event
// in a region, scoped to a survey category. It is treated as read-only by
// the insight subsystem.
type Phenomenon struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Region      Region    `json:"region"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}
