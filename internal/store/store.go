// Package store defines the persistence interfaces the insight subsystem
// consumes, with Postgres and SQLite implementations.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

// likeEscaper neutralizes LIKE metacharacters so a literal title term such
// as "100%" cannot widen the match. Both stores pair it with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PhenomenonFilter specifies criteria for counting and listing phenomena.
// Empty string fields mean "no restriction".
type PhenomenonFilter struct {
	CategoryID   string `json:"category_id,omitempty"`
	PeriodID     string `json:"period_id,omitempty"`
	RegionID     string `json:"region_id,omitempty"`
	PhenomenonID string `json:"phenomenon_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// NewsFilter specifies the recall-widening candidate search: articles whose
// ingestion keywords intersect Keywords OR whose title contains TitleTerm,
// published since Since.
type NewsFilter struct {
	Keywords  []string  `json:"keywords,omitempty"`
	TitleTerm string    `json:"title_term,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// SurveyNoteFilter scopes survey notes to a category and region.
type SurveyNoteFilter struct {
	CategoryID string `json:"category_id,omitempty"`
	RegionID   string `json:"region_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// PhenomenonStore reads phenomena with embedded category and region.
type PhenomenonStore interface {
	CountPhenomena(ctx context.Context, filter PhenomenonFilter) (int, error)
	ListPhenomena(ctx context.Context, filter PhenomenonFilter) ([]model.Phenomenon, error)
}

// NewsStore reads candidate articles from the scraped news corpus.
type NewsStore interface {
	SearchNews(ctx context.Context, filter NewsFilter) ([]model.NewsArticle, error)
}

// SurveyNoteStore reads citizen survey notes.
type SurveyNoteStore interface {
	ListSurveyNotes(ctx context.Context, filter SurveyNoteFilter) ([]model.SurveyNote, error)
}

// AnalysisStore appends completed insight records. Records are independent
// per phenomenon; concurrent writers may append records for the same
// phenomenon without conflict.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error
}

// Store is the full persistence interface.
type Store interface {
	PhenomenonStore
	NewsStore
	SurveyNoteStore
	AnalysisStore

	Migrate(ctx context.Context) error
	Close() error
}
