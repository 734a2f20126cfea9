package sentiment

import (
	"strings"

	"edgarbulk/pkg/models"
)

// punctReplacer normalizes word boundaries before tokenizing. Hyphens
// and slashes split compounds into separate tokens.
var punctReplacer = strings.NewReplacer(
	".", " ", ",", " ", ";", " ", ":", " ", "!", " ", "?", " ",
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ",
	"\"", " ", "'", "", "`", " ", "-", " ", "/", " ", "\\", " ",
	"$", " ", "%", " ", "&", " ", "*", " ", "#", " ", "=", " ",
	"<", " ", ">", " ", "|", " ", "_", " ", "+", " ",
)

// Score computes document statistics and lexicon category counts for a
// payload. Counting is case-insensitive over whitespace-delimited tokens
// after punctuation normalization.
func Score(payload string, lex *Lexicon) models.SentimentRecord {
	rec := models.SentimentRecord{
		FileSize:  int64(len(payload)),
		CharCount: len(payload),
	}

	tokens := Tokenize(payload)
	rec.WordCount = len(tokens)

	unique := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		unique[tok] = true

		if isComplex(tok) {
			rec.ComplexWords++
		}
		if lex == nil {
			continue
		}
		if lex.StopWords[tok] {
			rec.StopWords++
		}
		if lex.Negative[tok] {
			rec.Negative++
		}
		if lex.Positive[tok] {
			rec.Positive++
		}
		if lex.StrongModal[tok] {
			rec.StrongModal++
		}
		if lex.ModerateModal[tok] {
			rec.ModerateModal++
		}
		if lex.WeakModal[tok] {
			rec.WeakModal++
		}
		if lex.Uncertainty[tok] {
			rec.Uncertainty++
		}
		if lex.Litigious[tok] {
			rec.Litigious++
		}
		if lex.GeneralNegative[tok] {
			rec.GeneralNegative++
		}
	}
	rec.UniqueWords = len(unique)
	return rec
}

// Tokenize lowercases the payload, normalizes punctuation and splits on
// whitespace. Purely numeric tokens are kept; they never collide with
// lexicon entries.
func Tokenize(payload string) []string {
	normalized := punctReplacer.Replace(strings.ToLower(payload))
	return strings.Fields(normalized)
}

// isComplex reports whether a vowel character appears more than three
// times within the word.
func isComplex(word string) bool {
	vowels := 0
	for _, r := range word {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
			if vowels > 3 {
				return true
			}
		}
	}
	return false
}
