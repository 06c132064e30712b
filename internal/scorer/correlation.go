// Package scorer computes correlation scores between a phenomenon and
// candidate evidence items from the news and survey corpora.
package scorer

import (
	"math"
	"time"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

// Component weights for the combined relevance score.
const (
	weightKeyword   = 0.4
	weightTemporal  = 0.3
	weightGeo       = 0.2
	weightSentiment = 0.1
)

// GeographicScore is a fixed placeholder until region distance/overlap
// scoring lands. Changing it shifts every calibrated relevance threshold,
// so it must move together with the filter cutoffs.
const GeographicScore = 50.0

// temporalMargin is how far outside the survey window (or away from the
// phenomenon's creation date) a candidate can be before temporal relevance
// reaches zero.
const temporalMargin = 30 * 24 * time.Hour

// KeywordOverlap returns the Jaccard similarity of two keyword sets on a
// 0-100 scale. Two empty sets score 0.
func KeywordOverlap(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, kw := range a {
		setA[kw] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, kw := range b {
		setB[kw] = struct{}{}
	}

	var intersection int
	for kw := range setB {
		if _, ok := setA[kw]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union) * 100
}

// TemporalRelevance scores how close a candidate's timestamp is to the
// phenomenon's survey window. Inside the window scores 100; outside, the
// score degrades linearly from 80 to 0 over a 30-day margin. When the
// category defines no window, the candidate is scored against the
// phenomenon's creation date instead: 100 minus a linear penalty over the
// same 30-day horizon, floored at 0.
func TemporalRelevance(p model.Phenomenon, ts time.Time) float64 {
	start := p.Category.StartDate
	end := p.Category.EndDate

	if start != nil && end != nil {
		if !ts.Before(*start) && !ts.After(*end) {
			return 100
		}
		var dist time.Duration
		if ts.Before(*start) {
			dist = start.Sub(ts)
		} else {
			dist = ts.Sub(*end)
		}
		if dist >= temporalMargin {
			return 0
		}
		return 80 * (1 - dist.Seconds()/temporalMargin.Seconds())
	}

	diff := ts.Sub(p.CreatedAt)
	if diff < 0 {
		diff = -diff
	}
	return math.Max(0, 100*(1-diff.Seconds()/temporalMargin.Seconds()))
}

// SentimentMatch scores label agreement: 100 for identical labels, 50 when
// either side is neutral, 0 for opposing labels.
func SentimentMatch(a, b model.Sentiment) float64 {
	switch {
	case a == b:
		return 100
	case a == model.SentimentNeutral || b == model.SentimentNeutral:
		return 50
	default:
		return 0
	}
}

// Correlate computes the full correlation breakdown for one
// phenomenon-candidate pair from pre-extracted keywords and sentiments.
func Correlate(p model.Phenomenon, pKeywords []string, pSentiment model.Sentiment,
	cKeywords []string, cSentiment model.Sentiment, ts time.Time) model.CorrelationData {
	return model.CorrelationData{
		KeywordOverlap:      KeywordOverlap(pKeywords, cKeywords),
		TemporalRelevance:   TemporalRelevance(p, ts),
		GeographicRelevance: GeographicScore,
		SentimentMatch:      SentimentMatch(pSentiment, cSentiment),
	}
}

// RelevanceScore combines the correlation components into a single 0-100
// integer used to rank and filter candidates.
func RelevanceScore(c model.CorrelationData) int {
	score := c.KeywordOverlap*weightKeyword +
		c.TemporalRelevance*weightTemporal +
		c.GeographicRelevance*weightGeo +
		c.SentimentMatch*weightSentiment
	return int(math.Round(score))
}
