// Package text provides keyword extraction and lexicon-based sentiment
// classification for Indonesian free text.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// minKeywordLen is exclusive: tokens must be strictly longer than this.
const minKeywordLen = 3

var nonWord = regexp.MustCompile(`[^\w\s]`)

// stopwords are common Indonesian function words that carry no signal.
var stopwords = map[string]struct{}{
	"yang": {}, "dan": {}, "di": {}, "ke": {}, "dari": {}, "ini": {},
	"itu": {}, "dengan": {}, "untuk": {}, "pada": {}, "adalah": {},
	"sebagai": {}, "dalam": {}, "tidak": {}, "akan": {}, "ada": {},
	"juga": {}, "sudah": {}, "telah": {}, "saya": {}, "anda": {},
	"dia": {}, "mereka": {}, "kita": {}, "kami": {}, "atau": {},
	"tapi": {}, "tetapi": {}, "karena": {}, "jika": {}, "ketika": {},
	"sebelum": {}, "sesudah": {}, "antara": {}, "tentang": {},
	"seperti": {}, "oleh": {}, "bisa": {}, "dapat": {}, "harus": {},
	"masih": {}, "secara": {}, "serta": {}, "yaitu": {}, "para": {},
}

// ExtractKeywords tokenizes free text into significant lowercase keywords.
// Punctuation is replaced with whitespace, and tokens are dropped when they
// are 3 characters or shorter, consist entirely of digits, or appear in the
// stop-word list. The result is deduplicated in first-occurrence order so
// callers can treat it as a set. Empty input yields an empty slice.
func ExtractKeywords(s string) []string {
	if s == "" {
		return nil
	}

	// Scraped portal text arrives in mixed Unicode normal forms.
	lower := strings.ToLower(norm.NFC.String(s))
	cleaned := nonWord.ReplaceAllString(lower, " ")

	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= minKeywordLen {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if isAllDigits(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
