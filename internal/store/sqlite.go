package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is meant for
// local development: unlike the Postgres store it creates the corpus tables
// itself so the service can run self-contained.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	start_date DATETIME,
	end_date   DATETIME
);

CREATE TABLE IF NOT EXISTS regions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS phenomena (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL REFERENCES categories(id),
	region_id   TEXT NOT NULL REFERENCES regions(id),
	period_id   TEXT,
	user_id     TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news_articles (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	portal       TEXT NOT NULL DEFAULT '',
	published_at DATETIME NOT NULL,
	scraped_at   DATETIME NOT NULL,
	keywords     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS survey_notes (
	id          TEXT PRIMARY KEY,
	note        TEXT NOT NULL,
	category_id TEXT NOT NULL,
	region_id   TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_records (
	id            TEXT PRIMARY KEY,
	phenomenon_id TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	insight       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_phenomena_category ON phenomena(category_id);
CREATE INDEX IF NOT EXISTS idx_phenomena_region ON phenomena(region_id);
CREATE INDEX IF NOT EXISTS idx_news_published ON news_articles(published_at);
CREATE INDEX IF NOT EXISTS idx_survey_notes_scope ON survey_notes(category_id, region_id);
CREATE INDEX IF NOT EXISTS idx_analysis_records_phenomenon
	ON analysis_records(phenomenon_id, analysis_type, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePhenomenonWhere(f PhenomenonFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, val any) {
		conds = append(conds, expr)
		args = append(args, val)
	}

	if f.PhenomenonID != "" {
		add("p.id = ?", f.PhenomenonID)
	}
	if f.CategoryID != "" {
		add("p.category_id = ?", f.CategoryID)
	}
	if f.PeriodID != "" {
		add("p.period_id = ?", f.PeriodID)
	}
	if f.RegionID != "" {
		add("p.region_id = ?", f.RegionID)
	}
	if f.UserID != "" {
		add("p.user_id = ?", f.UserID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const sqlitePhenomenonQuery = `
	SELECT p.id, p.title, p.description, p.user_id, p.created_at,
	       c.id, c.name, c.start_date, c.end_date,
	       r.id, r.name
	FROM phenomena p
	JOIN categories c ON c.id = p.category_id
	JOIN regions r ON r.id = p.region_id`

func (s *SQLiteStore) CountPhenomena(ctx context.Context, filter PhenomenonFilter) (int, error) {
	where, args := sqlitePhenomenonWhere(filter)
	query := `SELECT count(*) FROM phenomena p
	JOIN categories c ON c.id = p.category_id
	JOIN regions r ON r.id = p.region_id` + where

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "sqlite: count phenomena")
	}
	return count, nil
}

func (s *SQLiteStore) ListPhenomena(ctx context.Context, filter PhenomenonFilter) ([]model.Phenomenon, error) {
	where, args := sqlitePhenomenonWhere(filter)
	query := sqlitePhenomenonQuery + where + " ORDER BY p.created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list phenomena")
	}
	defer rows.Close()

	var phenomena []model.Phenomenon
	for rows.Next() {
		var p model.Phenomenon
		err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.UserID, &p.CreatedAt,
			&p.Category.ID, &p.Category.Name, &p.Category.StartDate, &p.Category.EndDate,
			&p.Region.ID, &p.Region.Name,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phenomenon")
		}
		phenomena = append(phenomena, p)
	}
	return phenomena, eris.Wrap(rows.Err(), "sqlite: iterate phenomena")
}

func (s *SQLiteStore) SearchNews(ctx context.Context, filter NewsFilter) ([]model.NewsArticle, error) {
	args := []any{filter.Since}
	where := "published_at >= ?"

	var match []string
	for _, kw := range filter.Keywords {
		match = append(match, "instr(keywords, ?) > 0")
		args = append(args, kw)
	}
	if filter.TitleTerm != "" {
		match = append(match, `lower(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(filter.TitleTerm))+"%")
	}
	if len(match) > 0 {
		where += " AND (" + strings.Join(match, " OR ") + ")"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, title, content, portal, published_at, scraped_at, keywords
		FROM news_articles
		WHERE %s
		ORDER BY published_at DESC
		LIMIT ?`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search news")
	}
	defer rows.Close()

	var articles []model.NewsArticle
	for rows.Next() {
		var a model.NewsArticle
		var keywords string
		err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Portal, &a.PublishedAt, &a.ScrapedAt, &keywords)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news article")
		}
		a.Keywords = strings.Fields(keywords)
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "sqlite: iterate news")
}

func (s *SQLiteStore) ListSurveyNotes(ctx context.Context, filter SurveyNoteFilter) ([]model.SurveyNote, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note, category_id, region_id, created_at
		FROM survey_notes
		WHERE category_id = ? AND region_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, filter.CategoryID, filter.RegionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list survey notes")
	}
	defer rows.Close()

	var notes []model.SurveyNote
	for rows.Next() {
		var n model.SurveyNote
		err := rows.Scan(&n.ID, &n.Note, &n.CategoryID, &n.RegionID, &n.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan survey note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: iterate survey notes")
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	insightJSON, err := json.Marshal(rec.Insight)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insight")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_records (id, phenomenon_id, analysis_type, insight, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.PhenomenonID, rec.AnalysisType, string(insightJSON), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert analysis record")
}
