// Package insight runs the per-phenomenon correlation pipeline: candidate
// retrieval, scoring, metric aggregation, and recommendation generation.
package insight

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datalitbang/fenomena-insight/internal/model"
	"github.com/datalitbang/fenomena-insight/internal/scorer"
	"github.com/datalitbang/fenomena-insight/internal/store"
	"github.com/datalitbang/fenomena-insight/internal/text"
)

const (
	newsFetchLimit   = 10
	surveyFetchLimit = 5
	newsWindow       = 90 * 24 * time.Hour

	maxCorrelatedNews = 5
	maxSurveyNotes    = 5

	// Relevance floors are exclusive: candidates must score strictly above.
	newsRelevanceFloor   = 20
	surveyRelevanceFloor = 10

	commonKeywordPreview = 10
	uniqueKeywordPreview = 5
)

// Recommendation rules fire in declaration order; more than one may apply.
const (
	recWeakValidation = "Validasi media terhadap fenomena ini masih lemah, lakukan verifikasi lapangan tambahan."
	recSentimentSplit = "Sentimen pemberitaan dan catatan survei belum sejalan, tinjau kembali arah fenomena."
	recNoCorrelation  = "Belum ditemukan pemberitaan yang berkorelasi, pertimbangkan memperluas kata kunci pemantauan."
	recStrongSupport  = "Fenomena didukung kuat oleh pemberitaan dan data survei, layak diangkat sebagai temuan utama."
)

// Overall score weights for the four top-level metrics.
const (
	weightValidation = 0.30
	weightInterest   = 0.25
	weightAlignment  = 0.25
	weightDiversity  = 0.20
)

// Aggregator computes a FenomenaInsight from the news and survey corpora.
type Aggregator struct {
	news  store.NewsStore
	notes store.SurveyNoteStore

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates an Aggregator over the given corpus stores.
func New(news store.NewsStore, notes store.SurveyNoteStore) *Aggregator {
	return &Aggregator{
		news:    news,
		notes:   notes,
		nowFunc: time.Now,
	}
}

type scoredArticle struct {
	retained  model.CorrelatedNews
	keywords  []string
	sentiment model.Sentiment
}

type scoredNote struct {
	retained  model.RelatedSurveyNote
	keywords  []string
	sentiment model.Sentiment
}

// Analyze runs the full pipeline for one phenomenon.
func (a *Aggregator) Analyze(ctx context.Context, p model.Phenomenon) (*model.FenomenaInsight, error) {
	pKeywords := text.ExtractKeywords(p.Title + " " + p.Description)
	pSentiment := text.ClassifySentiment(p.Title + " " + p.Description)

	articles, notes, err := a.fetchCandidates(ctx, p, pKeywords)
	if err != nil {
		return nil, err
	}

	news := scoreArticles(p, pKeywords, pSentiment, articles)
	survey := scoreNotes(pKeywords, notes)

	keywordAnalysis := analyzeKeywords(pKeywords, news, survey)
	sentimentAnalysis := analyzeSentiment(pSentiment, news, survey)
	metrics := computeMetrics(news, sentimentAnalysis.AlignmentScore)

	ins := &model.FenomenaInsight{
		Phenomenon:         p,
		Metrics:            metrics,
		CorrelatedNews:     retainedNews(news),
		RelatedSurveyNotes: retainedNotes(survey),
		KeywordAnalysis:    keywordAnalysis,
		SentimentAnalysis:  sentimentAnalysis,
		Recommendations:    recommendations(metrics, len(news)),
		GeneratedAt:        a.nowFunc().UTC(),
	}

	zap.L().Debug("insight: analysis complete",
		zap.String("phenomenon_id", p.ID),
		zap.Float64("overall_score", metrics.OverallScore),
		zap.Int("correlated_news", len(ins.CorrelatedNews)),
		zap.Int("survey_notes", len(ins.RelatedSurveyNotes)),
	)

	return ins, nil
}

// fetchCandidates issues the news and survey-note lookups concurrently;
// the two reads are independent.
func (a *Aggregator) fetchCandidates(ctx context.Context, p model.Phenomenon, pKeywords []string) ([]model.NewsArticle, []model.SurveyNote, error) {
	var (
		articles []model.NewsArticle
		notes    []model.SurveyNote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = a.news.SearchNews(gctx, store.NewsFilter{
			Keywords:  pKeywords,
			TitleTerm: firstTitleWord(p.Title),
			Since:     a.nowFunc().Add(-newsWindow),
			Limit:     newsFetchLimit,
		})
		return eris.Wrap(err, "insight: search news candidates")
	})
	g.Go(func() error {
		var err error
		notes, err = a.notes.ListSurveyNotes(gctx, store.SurveyNoteFilter{
			CategoryID: p.Category.ID,
			RegionID:   p.Region.ID,
			Limit:      surveyFetchLimit,
		})
		return eris.Wrap(err, "insight: list survey notes")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return articles, notes, nil
}

// scoreArticles correlates each candidate article, drops those at or below
// the relevance floor, and keeps the top entries sorted by score.
func scoreArticles(p model.Phenomenon, pKeywords []string, pSentiment model.Sentiment, articles []model.NewsArticle) []scoredArticle {
	var scored []scoredArticle
	for _, art := range articles {
		body := art.Title + " " + art.Content
		kws := text.ExtractKeywords(body)
		sent := text.ClassifySentiment(body)

		corr := scorer.Correlate(p, pKeywords, pSentiment, kws, sent, art.PublishedAt)
		rel := scorer.RelevanceScore(corr)
		if rel <= newsRelevanceFloor {
			continue
		}
		scored = append(scored, scoredArticle{
			retained: model.CorrelatedNews{
				Article:        art,
				Correlation:    corr,
				RelevanceScore: rel,
			},
			keywords:  kws,
			sentiment: sent,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].retained.RelevanceScore > scored[j].retained.RelevanceScore
	})
	if len(scored) > maxCorrelatedNews {
		scored = scored[:maxCorrelatedNews]
	}
	return scored
}

// scoreNotes ranks survey notes by keyword overlap alone.
func scoreNotes(pKeywords []string, notes []model.SurveyNote) []scoredNote {
	var scored []scoredNote
	for _, n := range notes {
		kws := text.ExtractKeywords(n.Note)
		rel := int(math.Round(scorer.KeywordOverlap(pKeywords, kws)))
		if rel <= surveyRelevanceFloor {
			continue
		}
		scored = append(scored, scoredNote{
			retained: model.RelatedSurveyNote{
				Note:           n,
				RelevanceScore: rel,
			},
			keywords:  kws,
			sentiment: text.ClassifySentiment(n.Note),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].retained.RelevanceScore > scored[j].retained.RelevanceScore
	})
	if len(scored) > maxSurveyNotes {
		scored = scored[:maxSurveyNotes]
	}
	return scored
}

func analyzeKeywords(pKeywords []string, news []scoredArticle, survey []scoredNote) model.KeywordAnalysis {
	pSet := toSet(pKeywords)

	var newsKeywords []string
	newsSet := make(map[string]struct{})
	for _, n := range news {
		for _, kw := range n.keywords {
			if _, ok := newsSet[kw]; !ok {
				newsSet[kw] = struct{}{}
				newsKeywords = append(newsKeywords, kw)
			}
		}
	}

	var surveyKeywords []string
	surveySet := make(map[string]struct{})
	for _, n := range survey {
		for _, kw := range n.keywords {
			if _, ok := surveySet[kw]; !ok {
				surveySet[kw] = struct{}{}
				surveyKeywords = append(surveyKeywords, kw)
			}
		}
	}

	var common []string
	for _, kw := range pKeywords {
		_, inNews := newsSet[kw]
		_, inSurvey := surveySet[kw]
		if inNews || inSurvey {
			common = append(common, kw)
		}
	}

	var uniqueToNews []string
	for _, kw := range newsKeywords {
		_, inP := pSet[kw]
		_, inSurvey := surveySet[kw]
		if !inP && !inSurvey {
			uniqueToNews = append(uniqueToNews, kw)
		}
	}

	var uniqueToSurvey []string
	for _, kw := range surveyKeywords {
		_, inP := pSet[kw]
		_, inNews := newsSet[kw]
		if !inP && !inNews {
			uniqueToSurvey = append(uniqueToSurvey, kw)
		}
	}

	return model.KeywordAnalysis{
		PhenomenonKeywords: pKeywords,
		NewsKeywords:       truncate(newsKeywords, commonKeywordPreview),
		SurveyKeywords:     truncate(surveyKeywords, commonKeywordPreview),
		CommonKeywords:     truncate(common, commonKeywordPreview),
		UniqueToNews:       truncate(uniqueToNews, uniqueKeywordPreview),
		UniqueToSurvey:     truncate(uniqueToSurvey, uniqueKeywordPreview),
	}
}

func analyzeSentiment(pSentiment model.Sentiment, news []scoredArticle, survey []scoredNote) model.SentimentAnalysis {
	var newsCounts, surveyCounts model.SentimentCounts
	for _, n := range news {
		tally(&newsCounts, n.sentiment)
	}
	for _, n := range survey {
		tally(&surveyCounts, n.sentiment)
	}

	newsPosRatio, newsNegRatio := ratios(newsCounts, len(news))
	surveyPosRatio, surveyNegRatio := ratios(surveyCounts, len(survey))

	alignment := 100 - (math.Abs(newsPosRatio-surveyPosRatio)*50 +
		math.Abs(newsNegRatio-surveyNegRatio)*50)

	return model.SentimentAnalysis{
		PhenomenonSentiment: pSentiment,
		News:                newsCounts,
		Survey:              surveyCounts,
		AlignmentScore:      clamp(alignment),
	}
}

func computeMetrics(news []scoredArticle, alignment float64) model.InsightMetrics {
	var totalRelevance float64
	portals := make(map[string]struct{})
	for _, n := range news {
		totalRelevance += float64(n.retained.RelevanceScore)
		if n.retained.Article.Portal != "" {
			portals[n.retained.Article.Portal] = struct{}{}
		}
	}

	m := model.InsightMetrics{
		ValidationStrength: clamp(20 * float64(len(news))),
		PublicInterest:     clamp(totalRelevance / 5),
		SentimentAlignment: clamp(alignment),
		EvidenceDiversity:  clamp(35 * float64(len(portals))),
	}
	m.OverallScore = math.Round(m.ValidationStrength*weightValidation +
		m.PublicInterest*weightInterest +
		m.SentimentAlignment*weightAlignment +
		m.EvidenceDiversity*weightDiversity)
	return m
}

func recommendations(m model.InsightMetrics, retainedNews int) []string {
	var recs []string
	if m.ValidationStrength < 40 {
		recs = append(recs, recWeakValidation)
	}
	if m.SentimentAlignment < 50 {
		recs = append(recs, recSentimentSplit)
	}
	if retainedNews == 0 {
		recs = append(recs, recNoCorrelation)
	}
	if m.OverallScore > 75 {
		recs = append(recs, recStrongSupport)
	}
	return recs
}

func retainedNews(news []scoredArticle) []model.CorrelatedNews {
	out := make([]model.CorrelatedNews, 0, len(news))
	for _, n := range news {
		out = append(out, n.retained)
	}
	return out
}

func retainedNotes(notes []scoredNote) []model.RelatedSurveyNote {
	out := make([]model.RelatedSurveyNote, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.retained)
	}
	return out
}

// firstTitleWord returns the first whitespace-delimited word of the title,
// lowercased, for the title-substring arm of the candidate search.
func firstTitleWord(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func tally(c *model.SentimentCounts, s model.Sentiment) {
	switch s {
	case model.SentimentPositive:
		c.Positive++
	case model.SentimentNegative:
		c.Negative++
	default:
		c.Neutral++
	}
}

func ratios(c model.SentimentCounts, total int) (pos, neg float64) {
	if total == 0 {
		return 0, 0
	}
	return float64(c.Positive) / float64(total), float64(c.Negative) / float64(total)
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func toSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[kw] = struct{}{}
	}
	return set
}

func truncate(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
