// Package sentiment computes lexicon-based sentiment counts and document
// statistics for filing payloads.
//
// Sentiment here is lookup and counting against closed word lists (the
// Loughran-McDonald financial categories plus the Harvard general
// negative list), not a model.
package sentiment

import (
	"fmt"
	"os"
	"strings"

	"github.com/hjson/hjson-go/v4"
)

// Lexicon holds the closed category word sets and the stop-word list.
// The dataset file is read-only, human-maintained and may carry
// comments, hence the lenient hjson format.
type Lexicon struct {
	Negative        map[string]bool
	Positive        map[string]bool
	StrongModal     map[string]bool
	ModerateModal   map[string]bool
	WeakModal       map[string]bool
	Uncertainty     map[string]bool
	Litigious       map[string]bool
	GeneralNegative map[string]bool
	StopWords       map[string]bool
}

// lexiconFile mirrors the on-disk dataset layout.
type lexiconFile struct {
	Negative        []string `json:"negative"`
	Positive        []string `json:"positive"`
	StrongModal     []string `json:"strong_modal"`
	ModerateModal   []string `json:"moderate_modal"`
	WeakModal       []string `json:"weak_modal"`
	Uncertainty     []string `json:"uncertainty"`
	Litigious       []string `json:"litigious"`
	GeneralNegative []string `json:"general_negative"`
	StopWords       []string `json:"stop_words"`
}

// LoadLexicon reads the lexicon dataset from path.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}

	var file lexiconFile
	if err := hjson.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}

	return &Lexicon{
		Negative:        toSet(file.Negative),
		Positive:        toSet(file.Positive),
		StrongModal:     toSet(file.StrongModal),
		ModerateModal:   toSet(file.ModerateModal),
		WeakModal:       toSet(file.WeakModal),
		Uncertainty:     toSet(file.Uncertainty),
		Litigious:       toSet(file.Litigious),
		GeneralNegative: toSet(file.GeneralNegative),
		StopWords:       toSet(file.StopWords),
	}, nil
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = true
		}
	}
	return set
}
