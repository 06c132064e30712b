package model

import "time"

// AnalysisTypeInsight tags analysis records produced by the correlation
// pipeline.
const AnalysisTypeInsight = "fenomena_insight"

// CorrelationData holds the four component scores computed for one
// phenomenon-candidate pair. All components are on a 0-100 scale.
type CorrelationData struct {
	KeywordOverlap      float64 `json:"keywordOverlap"`
	TemporalRelevance   float64 `json:"temporalRelevance"`
	GeographicRelevance float64 `json:"geographicRelevance"`
	SentimentMatch      float64 `json:"sentimentMatch"`
}

// CorrelatedNews is a news article retained as evidence for a phenomenon,
// with its correlation breakdown and combined relevance score.
type CorrelatedNews struct {
	Article        NewsArticle     `json:"article"`
	Correlation    CorrelationData `json:"correlation"`
	RelevanceScore int             `json:"relevanceScore"`
}

// RelatedSurveyNote is a survey note retained as supporting evidence.
// Survey notes are scored on keyword overlap alone.
type RelatedSurveyNote struct {
	Note           SurveyNote `json:"note"`
	RelevanceScore int        `json:"relevanceScore"`
}

// InsightMetrics are the four top-level metrics plus their weighted overall
// score, each clamped to [0,100].
type InsightMetrics struct {
	ValidationStrength float64 `json:"validationStrength"`
	PublicInterest     float64 `json:"publicInterest"`
	SentimentAlignment float64 `json:"sentimentAlignment"`
	EvidenceDiversity  float64 `json:"evidenceDiversity"`
	OverallScore       float64 `json:"overallScore"`
}

// KeywordAnalysis breaks down how the phenomenon's keywords relate to the
// keywords found in each evidence source.
type KeywordAnalysis struct {
	PhenomenonKeywords []string `json:"phenomenonKeywords"`
	NewsKeywords       []string `json:"newsKeywords"`
	SurveyKeywords     []string `json:"surveyKeywords"`
	CommonKeywords     []string `json:"commonKeywords"`
	UniqueToNews       []string `json:"uniqueToNews"`
	UniqueToSurvey     []string `json:"uniqueToSurvey"`
}

// SentimentCounts tallies sentiment labels across one evidence source.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// SentimentAnalysis compares sentiment distributions between the retained
// news and survey evidence.
type SentimentAnalysis struct {
	PhenomenonSentiment Sentiment       `json:"phenomenonSentiment"`
	News                SentimentCounts `json:"news"`
	Survey              SentimentCounts `json:"survey"`
	AlignmentScore      float64         `json:"alignmentScore"`
}

// FenomenaInsight is the full analysis result for one phenomenon. It is
// immutable once generated; re-running an analysis produces a fresh record.
type FenomenaInsight struct {
	Phenomenon         Phenomenon          `json:"phenomenon"`
	Metrics            InsightMetrics      `json:"metrics"`
	CorrelatedNews     []CorrelatedNews    `json:"correlatedNews"`
	RelatedSurveyNotes []RelatedSurveyNote `json:"relatedSurveyNotes"`
	KeywordAnalysis    KeywordAnalysis     `json:"keywordAnalysis"`
	SentimentAnalysis  SentimentAnalysis   `json:"sentimentAnalysis"`
	Recommendations    []string            `json:"recommendations"`
	GeneratedAt        time.Time           `json:"generatedAt"`
}

// AnalysisRecord is the persisted form of a completed insight, keyed by
// phenomenon id and analysis type.
type AnalysisRecord struct {
	ID           string          `json:"id"`
	PhenomenonID string          `json:"phenomenonId"`
	AnalysisType string          `json:"analysisType"`
	Insight      FenomenaInsight `json:"insight"`
	CreatedAt    time.Time       `json:"createdAt"`
}
