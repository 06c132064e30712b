package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

func TestKeywordOverlap_Identity(t *testing.T) {
	a := []string{"harga", "pangan", "sambas"}
	if got := KeywordOverlap(a, a); got != 100 {
		t.Errorf("overlap(A, A) = %v, want 100", got)
	}
}

func TestKeywordOverlap_Symmetry(t *testing.T) {
	a := []string{"harga", "pangan", "sambas"}
	b := []string{"harga", "beras", "distribusi", "pasar"}
	if KeywordOverlap(a, b) != KeywordOverlap(b, a) {
		t.Error("overlap is not symmetric")
	}
}

func TestKeywordOverlap_Disjoint(t *testing.T) {
	a := []string{"harga", "pangan"}
	b := []string{"jembatan", "pembangunan"}
	if got := KeywordOverlap(a, b); got != 0 {
		t.Errorf("overlap of disjoint sets = %v, want 0", got)
	}
}

func TestKeywordOverlap_BothEmpty(t *testing.T) {
	if got := KeywordOverlap(nil, nil); got != 0 {
		t.Errorf("overlap of empty sets = %v, want 0 (no division by zero)", got)
	}
}

func TestKeywordOverlap_Partial(t *testing.T) {
	a := []string{"harga", "pangan", "naik"}
	b := []string{"harga", "pangan", "pasar"}
	// |intersection|=2, |union|=4.
	want := 50.0
	if got := KeywordOverlap(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("overlap = %v, want %v", got, want)
	}
}

func windowPhenomenon(start, end time.Time) model.Phenomenon {
	return model.Phenomenon{
		Category: model.Category{StartDate: &start, EndDate: &end},
	}
}

func TestTemporalRelevance_InsideWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	p := windowPhenomenon(start, end)

	if got := TemporalRelevance(p, start.AddDate(0, 0, 10)); got != 100 {
		t.Errorf("inside window = %v, want 100", got)
	}
	if got := TemporalRelevance(p, start); got != 100 {
		t.Errorf("at window start = %v, want 100", got)
	}
	if got := TemporalRelevance(p, end); got != 100 {
		t.Errorf("at window end = %v, want 100", got)
	}
}

func TestTemporalRelevance_MarginDegrades(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	p := windowPhenomenon(start, end)

	// 15 days past the end: halfway through the margin, 40 points.
	got := TemporalRelevance(p, end.AddDate(0, 0, 15))
	if math.Abs(got-40) > 1e-9 {
		t.Errorf("15 days outside = %v, want 40", got)
	}

	// Before the start degrades the same way.
	got = TemporalRelevance(p, start.AddDate(0, 0, -15))
	if math.Abs(got-40) > 1e-9 {
		t.Errorf("15 days before = %v, want 40", got)
	}
}

func TestTemporalRelevance_OutsideMargin(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	p := windowPhenomenon(start, end)

	if got := TemporalRelevance(p, end.AddDate(0, 0, 200)); got != 0 {
		t.Errorf("200 days outside = %v, want 0", got)
	}
}

func TestTemporalRelevance_NoWindowFallback(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	p := model.Phenomenon{CreatedAt: created}

	if got := TemporalRelevance(p, created); got != 100 {
		t.Errorf("same day = %v, want 100", got)
	}

	got := TemporalRelevance(p, created.AddDate(0, 0, 15))
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("15 days apart = %v, want 50", got)
	}

	// Absolute difference: the past counts the same as the future.
	got = TemporalRelevance(p, created.AddDate(0, 0, -15))
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("15 days before = %v, want 50", got)
	}

	if got := TemporalRelevance(p, created.AddDate(0, 0, 60)); got != 0 {
		t.Errorf("60 days apart = %v, want 0 (floored)", got)
	}
}

func TestSentimentMatch(t *testing.T) {
	cases := []struct {
		a, b model.Sentiment
		want float64
	}{
		{model.SentimentPositive, model.SentimentPositive, 100},
		{model.SentimentNegative, model.SentimentNegative, 100},
		{model.SentimentNeutral, model.SentimentNeutral, 100},
		{model.SentimentPositive, model.SentimentNeutral, 50},
		{model.SentimentNeutral, model.SentimentNegative, 50},
		{model.SentimentPositive, model.SentimentNegative, 0},
	}
	for _, c := range cases {
		if got := SentimentMatch(c.a, c.b); got != c.want {
			t.Errorf("SentimentMatch(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestRelevanceScore_Bounds(t *testing.T) {
	// Weights sum to 1.0, so components in [0,100] keep the score in [0,100].
	low := RelevanceScore(model.CorrelationData{})
	if low != 0 {
		t.Errorf("all-zero components = %d, want 0", low)
	}
	high := RelevanceScore(model.CorrelationData{
		KeywordOverlap:      100,
		TemporalRelevance:   100,
		GeographicRelevance: 100,
		SentimentMatch:      100,
	})
	if high != 100 {
		t.Errorf("all-100 components = %d, want 100", high)
	}
}

func TestRelevanceScore_Weighting(t *testing.T) {
	got := RelevanceScore(model.CorrelationData{
		KeywordOverlap:      50,
		TemporalRelevance:   100,
		GeographicRelevance: 50,
		SentimentMatch:      0,
	})
	// 50*0.4 + 100*0.3 + 50*0.2 + 0*0.1 = 60.
	if got != 60 {
		t.Errorf("weighted score = %d, want 60", got)
	}
}

func TestCorrelate_UsesGeographicConstant(t *testing.T) {
	p := model.Phenomenon{CreatedAt: time.Now()}
	c := Correlate(p, []string{"harga"}, model.SentimentNeutral,
		[]string{"harga"}, model.SentimentNeutral, time.Now())
	if c.GeographicRelevance != GeographicScore {
		t.Errorf("geographic relevance = %v, want constant %v", c.GeographicRelevance, GeographicScore)
	}
}
