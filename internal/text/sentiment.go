package text

import (
	"strings"

	"github.com/datalitbang/fenomena-insight/internal/model"
)

// Lexicon matching is plain substring containment, not word-boundary aware.
// Downstream score thresholds are calibrated against this behavior, so it
// must not be "improved" to tokenized matching without recalibrating.
var positiveLexicon = []string{
	"meningkat", "naik", "tumbuh", "berkembang", "membaik", "berhasil",
	"sukses", "positif", "untung", "surplus", "maju", "bagus",
	"stabil", "menguat", "optimis", "lancar",
}

var negativeLexicon = []string{
	"turun", "anjlok", "merosot", "gagal", "buruk", "negatif",
	"rugi", "defisit", "krisis", "melemah", "pesimis", "bangkrut",
	"langka", "mahal", "keluhan", "sulit",
}

// ClassifySentiment labels text as positive, negative, or neutral by
// counting lexicon hits. Ties, including zero hits on both sides, resolve
// to neutral.
func ClassifySentiment(s string) model.Sentiment {
	lower := strings.ToLower(s)

	var pos, neg int
	for _, w := range positiveLexicon {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeLexicon {
		neg += strings.Count(lower, w)
	}

	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}
