package domain

import (
	"strings"
	"unicode"
)

// TextFeatures holds the lexical statistics extracted from a candidate
// answer. Stage A heuristics and the Stage B probe members consume these
// instead of re-tokenizing the text.
type TextFeatures struct {
	WordCount          int
	SentenceCount      int
	AvgSentenceLength  float64
	UniqueEntities     []string
	DistinctRatio      float64
	LinguisticPatterns []string
}

// uncertaintyPhrases mark hedged claims that correlate with fabrication.
var uncertaintyPhrases = []string{
	"as far as i know",
	"i think",
	"i believe",
	"it seems like",
	"probably",
	"allegedly",
}

// FeatureExtractor derives TextFeatures from answer text.
type FeatureExtractor struct {
	maxEntities int
}

// NewFeatureExtractor creates an extractor with the default entity cap.
func NewFeatureExtractor() FeatureExtractor {
	return FeatureExtractor{maxEntities: 10}
}

// Extract tokenizes the text and computes word/sentence statistics,
// capitalized-entity candidates, and uncertainty patterns.
func (f FeatureExtractor) Extract(text string) TextFeatures {
	words := strings.Fields(text)
	sentences := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}

	distinct := make(map[string]struct{}, len(words))
	var entities []string
	seenEntities := make(map[string]struct{})
	for i, w := range words {
		normalized := NormalizeToken(w)
		if normalized != "" {
			distinct[normalized] = struct{}{}
		}
		// Sentence-initial words are capitalized regardless of being
		// entities, so skip position 0 of the text.
		if i == 0 {
			continue
		}
		runes := []rune(strings.TrimFunc(w, unicode.IsPunct))
		if len(runes) > 2 && unicode.IsUpper(runes[0]) {
			key := string(runes)
			if _, ok := seenEntities[key]; !ok {
				seenEntities[key] = struct{}{}
				entities = append(entities, key)
			}
		}
	}
	if len(entities) > f.maxEntities {
		entities = entities[:f.maxEntities]
	}

	distinctRatio := 0.0
	if len(words) > 0 {
		distinctRatio = float64(len(distinct)) / float64(len(words))
	}
	avgLen := 0.0
	if sentences > 0 {
		avgLen = float64(len(words)) / float64(sentences)
	}

	return TextFeatures{
		WordCount:          len(words),
		SentenceCount:      sentences,
		AvgSentenceLength:  avgLen,
		UniqueEntities:     entities,
		DistinctRatio:      distinctRatio,
		LinguisticPatterns: detectPatterns(text),
	}
}

func detectPatterns(text string) []string {
	lower := strings.ToLower(text)
	var patterns []string
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			patterns = append(patterns, "uncertain_claim: "+phrase)
		}
	}
	return patterns
}

// NormalizeToken lowercases a token and strips surrounding punctuation.
// Returns "" when nothing remains.
func NormalizeToken(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// ContentTokens returns the normalized non-stopword tokens of text.
func ContentTokens(text string) []string {
	var tokens []string
	for _, w := range strings.Fields(text) {
		n := NormalizeToken(w)
		if n == "" {
			continue
		}
		if _, ok := stopwords[n]; ok {
			continue
		}
		tokens = append(tokens, n)
	}
	return tokens
}

// Tokens returns all normalized tokens of text, stopwords included.
func Tokens(text string) []string {
	var tokens []string
	for _, w := range strings.Fields(text) {
		if n := NormalizeToken(w); n != "" {
			tokens = append(tokens, n)
		}
	}
	return tokens
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "had": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "not": {}, "me": {}, "tell": {},
	"about": {},
}
