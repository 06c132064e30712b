package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. The corpus tables
// (phenomena, categories, regions, news_articles, survey_notes) are owned
// and migrated by the main survey application; this store only reads them.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_records (
	id            TEXT PRIMARY KEY,
	phenomenon_id TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	insight       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_records_phenomenon
	ON analysis_records(phenomenon_id, analysis_type, created_at DESC);
`

// Migrate creates the tables this subsystem writes. The corpus tables are
// migrated by the main survey application.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const phenomenonColumns = `
	p.id, p.title, p.description, p.user_id, p.created_at,
	c.id, c.name, c.start_date, c.end_date,
	r.id, r.name`

const phenomenonJoins = `
	FROM phenomena p
	JOIN categories c ON c.id = p.category_id
	JOIN regions r ON r.id = p.region_id`

func phenomenonWhere(f PhenomenonFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.PhenomenonID != "" {
		add("p.id = $%d", f.PhenomenonID)
	}
	if f.CategoryID != "" {
		add("p.category_id = $%d", f.CategoryID)
	}
	if f.PeriodID != "" {
		add("p.period_id = $%d", f.PeriodID)
	}
	if f.RegionID != "" {
		add("p.region_id = $%d", f.RegionID)
	}
	if f.UserID != "" {
		add("p.user_id = $%d", f.UserID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) CountPhenomena(ctx context.Context, filter PhenomenonFilter) (int, error) {
	where, args := phenomenonWhere(filter)
	var count int
	err := s.pool.QueryRow(ctx, "SELECT count(*)"+phenomenonJoins+where, args...).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count phenomena")
	}
	return count, nil
}

func (s *PostgresStore) ListPhenomena(ctx context.Context, filter PhenomenonFilter) ([]model.Phenomenon, error) {
	where, args := phenomenonWhere(filter)

	sql := "SELECT" + phenomenonColumns + phenomenonJoins + where + " ORDER BY p.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list phenomena")
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
			return nil, eris.Wrap(err, "postgres: scan phenomenon")
		}
		phenomena = append(phenomena, p)
	}
	return phenomena, eris.Wrap(rows.Err(), "postgres: iterate phenomena")
}

func (s *PostgresStore) SearchNews(ctx context.Context, filter NewsFilter) ([]model.NewsArticle, error) {
	var conds []string
	var args []any

	args = append(args, filter.Since)
	where := fmt.Sprintf("published_at >= $%d", len(args))

	if len(filter.Keywords) > 0 {
		args = append(args, filter.Keywords)
		conds = append(conds, fmt.Sprintf("keywords && $%d", len(args)))
	}
	if filter.TitleTerm != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(filter.TitleTerm))+"%")
		conds = append(conds, fmt.Sprintf(`lower(title) LIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(conds) > 0 {
		where += " AND (" + strings.Join(conds, " OR ") + ")"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT id, title, content, portal, published_at, scraped_at, keywords
		FROM news_articles
		WHERE %s
		ORDER BY published_at DESC
		LIMIT $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search news")
	}
	defer rows.Close()

	var articles []model.NewsArticle
	for rows.Next() {
		var a model.NewsArticle
		err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Portal, &a.PublishedAt, &a.ScrapedAt, &a.Keywords)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan news article")
		}
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: iterate news")
}

func (s *PostgresStore) ListSurveyNotes(ctx context.Context, filter SurveyNoteFilter) ([]model.SurveyNote, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, note, category_id, region_id, created_at
		FROM survey_notes
		WHERE category_id = $1 AND region_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, filter.CategoryID, filter.RegionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list survey notes")
	}
	defer rows.Close()

	var notes []model.SurveyNote
	for rows.Next() {
		var n model.SurveyNote
		err := rows.Scan(&n.ID, &n.Note, &n.CategoryID, &n.RegionID, &n.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan survey note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: iterate survey notes")
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	insightJSON, err := json.Marshal(rec.Insight)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal insight")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_records (id, phenomenon_id, analysis_type, insight, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.PhenomenonID, rec.AnalysisType, insightJSON, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert analysis record")
}
