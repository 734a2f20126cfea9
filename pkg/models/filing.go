// Package models defines the record types shared across the EDGAR
// acquisition and extraction pipeline.
package models

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Per-row status values reported in tabular batch output.
const (
	StatusDownloadSuccess = "Download success"
	StatusDownloadError   = "Download error"
	StatusAlreadyExists   = "Already exists"
	StatusServerError     = "Server Error"
)

// accessionPattern matches SEC accession numbers: NNNNNNNNNN-NN-NNNNNN.
var accessionPattern = regexp.MustCompile(`^\d{10}-\d{2}-\d{6}$`)

// IndexRecord is one line of a parsed EDGAR master index file.
// Records are immutable once parsed; duplicates within a partition are
// permitted by the source and must not be collapsed.
type IndexRecord struct {
	CIK         int    `json:"cik"`
	CompanyName string `json:"company_name"`
	FormType    string `json:"form_type"`
	DateFiled   string `json:"date_filed"` // YYYY-MM-DD
	EdgarLink   string `json:"edgar_link"` // server-relative path
	Quarter     int    `json:"quarter"`    // 1..4
	FilingYear  int    `json:"filing_year"`
}

// AccessionNumber derives the accession number from the edgar_link: the
// third path segment minus its extension. Returns "" if the link does not
// carry a well-formed accession number.
func (r IndexRecord) AccessionNumber() string {
	parts := strings.Split(r.EdgarLink, "/")
	if len(parts) < 3 {
		return ""
	}
	last := parts[len(parts)-1]
	acc := strings.TrimSuffix(last, filepath.Ext(last))
	if !accessionPattern.MatchString(acc) {
		return ""
	}
	return acc
}

// FilingURL is the absolute download URL for the filing.
func (r IndexRecord) FilingURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(r.EdgarLink, "/")
}

// CatalogEntry is an IndexRecord extended with its deterministic local
// cache path. The path is the cache key: two distinct records never map
// to the same path unless they are the same filing.
type CatalogEntry struct {
	IndexRecord
	Accession string `json:"accession_number"`
	DestPath  string `json:"dest_path"`
}

// OutcomeStatus classifies the result of one fetch attempt.
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeAlreadyCached
	OutcomeTransientFailure
	OutcomeFatalFailure
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyCached:
		return "already_cached"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeFatalFailure:
		return "fatal_failure"
	}
	return "unknown"
}

// RowStatus maps a download outcome to the tabular status string.
func (s OutcomeStatus) RowStatus() string {
	switch s {
	case OutcomeSuccess:
		return StatusDownloadSuccess
	case OutcomeAlreadyCached:
		return StatusAlreadyExists
	case OutcomeTransientFailure:
		return StatusServerError
	default:
		return StatusDownloadError
	}
}

// Outcome is the ephemeral result of one fetch.
type Outcome struct {
	Status       OutcomeStatus
	BytesWritten int64
}

// ExtractedSection is a located section of a filing. Header renders the
// provenance block prepended when the section is written to disk.
type ExtractedSection struct {
	CIK       int
	FormType  string
	DateFiled string
	Accession string
	BodyText  string
}

// Header renders the fixed-format metadata block prepended to extracted
// section files.
func (s ExtractedSection) Header(companyName string) string {
	return fmt.Sprintf("CIK: %d\nCOMPANY NAME: %s\nFORM TYPE: %s\nDATE FILED: %s\nACCESSION NUMBER: %s\n\n",
		s.CIK, companyName, s.FormType, s.DateFiled, s.Accession)
}

// EventItem is one disclosed 8-K item code with its schema description.
type EventItem struct {
	Code        string
	Description string
}

// SearchResult holds keyword hit counts and the highlight artifact for
// one filing. Excerpts is empty when HitCount is zero.
type SearchResult struct {
	HitCount int
	Excerpts string
}

// SentimentRecord carries per-filing document statistics and lexicon
// category counts. Computed on demand; not persisted by default.
type SentimentRecord struct {
	FileSize     int64 `json:"file_size"`
	WordCount    int   `json:"word_count"`
	UniqueWords  int   `json:"unique_words"`
	StopWords    int   `json:"stop_words"`
	CharCount    int   `json:"char_count"`
	ComplexWords int   `json:"complex_words"`

	// Lexicon category counts; closed set.
	Negative        int `json:"lm_negative"`
	Positive        int `json:"lm_positive"`
	StrongModal     int `json:"lm_strong_modal"`
	ModerateModal   int `json:"lm_moderate_modal"`
	WeakModal       int `json:"lm_weak_modal"`
	Uncertainty     int `json:"lm_uncertainty"`
	Litigious       int `json:"lm_litigious"`
	GeneralNegative int `json:"hv_negative"`
}

// FilingResult is one row of the tabular output every batch operation
// returns, even under partial failure.
type FilingResult struct {
	CIK           int    `json:"cik"`
	CompanyName   string `json:"company_name"`
	FormType      string `json:"form_type"`
	DateFiled     string `json:"date_filed"`
	EdgarLink     string `json:"edgar_link"`
	Accession     string `json:"accession_number"`
	Status        string `json:"status"`
	ExtractStatus *int   `json:"extract_status,omitempty"`
	Hits          *int   `json:"nword_hits,omitempty"`

	Events    []EventItem      `json:"events,omitempty"`
	Sentiment *SentimentRecord `json:"sentiment,omitempty"`
}

// ParseDateFiled parses the index date format.
func ParseDateFiled(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return t, nil
}
