package model

import "time"

// NewsArticle is a scraped portal article from the news corpus.
type NewsArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Portal      string    `json:"portal"`
	PublishedAt time.Time `json:"publishedAt"`
	ScrapedAt   time.Time `json:"scrapedAt"`
	// Keywords matched by the scraper at ingestion time. Used only for
	// corpus retrieval; correlation scoring re-extracts from the text.
	Keywords []string `json:"keywords,omitempty"`
}

// SurveyNote is a free-text note recorded by a citizen surveyor, scoped to
// a category and region.
type SurveyNote struct {
	ID         string    `json:"id"`
	Note       string    `json:"note"`
	CategoryID string    `json:"categoryId"`
	RegionID   string    `json:"regionId"`
	CreatedAt  time.Time `json:"createdAt"`
}
