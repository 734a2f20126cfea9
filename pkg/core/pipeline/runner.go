// Package pipeline orchestrates batch operations over resolved filings:
// download, section extraction, event extraction, keyword search and
// sentiment scoring.
//
// A bounded worker pool processes one filing per unit of work. Workers
// never share mutable counters; each produces an indexed result that the
// caller merges, so output rows always come back in the resolver's
// sorted order regardless of completion order. Failure in one filing
// never aborts its siblings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edgarbulk/pkg/core/catalog"
	"edgarbulk/pkg/core/download"
	"edgarbulk/pkg/core/events"
	"edgarbulk/pkg/core/payload"
	"edgarbulk/pkg/core/search"
	"edgarbulk/pkg/core/section"
	"edgarbulk/pkg/core/sentiment"
	"edgarbulk/pkg/models"
)

// ErrDeclined reports that the download confirmation gate was declined;
// no network operation for the batch was started.
var ErrDeclined = errors.New("pipeline: batch declined at confirmation gate")

// ConfirmFunc is consulted once per invocation with the number of new
// downloads required. Returning false aborts the whole batch before any
// filing network I/O (all-or-nothing).
type ConfirmFunc func(newDownloads int) bool

// ResultSink persists batch results. Implementations must tolerate
// repeated saves of the same accession (upsert).
type ResultSink interface {
	SaveBatch(ctx context.Context, batchID, operation string, rows []models.FilingResult) error
}

// Runner executes batch operations.
type Runner struct {
	Resolver *catalog.Resolver
	Client   *download.Client
	Sink     ResultSink // optional
	Workers  int
	Confirm  ConfirmFunc // nil = no gate
	Log      *zap.Logger
	BaseURL  string
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

// prepare resolves the query and evaluates the confirmation gate.
func (r *Runner) prepare(ctx context.Context, q catalog.Query) ([]models.CatalogEntry, error) {
	entries, err := r.Resolver.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	_, missing := catalog.Partition(entries)
	if r.Confirm != nil && len(missing) > 0 && !r.Confirm(len(missing)) {
		return nil, ErrDeclined
	}
	return entries, nil
}

// runPool fans entries out to the worker pool. Each worker writes only
// its own slot of the results slice, so rows keep resolver order.
func (r *Runner) runPool(ctx context.Context, entries []models.CatalogEntry,
	work func(ctx context.Context, e models.CatalogEntry) models.FilingResult) []models.FilingResult {

	results := make([]models.FilingResult, len(entries))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = work(ctx, entries[i])
			}
		}()
	}
	for i := range entries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// baseRow copies the identifying columns every operation reports.
func baseRow(e models.CatalogEntry) models.FilingResult {
	return models.FilingResult{
		CIK:         e.CIK,
		CompanyName: e.CompanyName,
		FormType:    e.FormType,
		DateFiled:   e.DateFiled,
		EdgarLink:   e.EdgarLink,
		Accession:   e.Accession,
	}
}

// fetchStatus maps a fetch outcome and error to the tabular status.
func fetchStatus(out models.Outcome, err error) string {
	if err != nil {
		if errors.Is(err, download.ErrAttemptsExhausted) {
			return models.StatusServerError
		}
		return models.StatusDownloadError
	}
	return out.Status.RowStatus()
}

// ensureRaw downloads the raw filing file when absent and returns the
// per-row status.
func (r *Runner) ensureRaw(ctx context.Context, e models.CatalogEntry) string {
	out, err := r.Client.Fetch(ctx, e.FilingURL(r.BaseURL), e.DestPath)
	if err != nil {
		r.logger().Warn("filing download failed",
			zap.String("accession", e.Accession),
			zap.Error(err))
	}
	return fetchStatus(out, err)
}

// save pushes rows to the sink when configured.
func (r *Runner) save(ctx context.Context, operation string, rows []models.FilingResult) {
	if r.Sink == nil {
		return
	}
	batchID := uuid.NewString()
	if err := r.Sink.SaveBatch(ctx, batchID, operation, rows); err != nil {
		r.logger().Warn("failed to persist batch results",
			zap.String("operation", operation),
			zap.Error(err))
	}
}

// Download fetches every resolved filing, returning one row per entry
// even under partial failure.
func (r *Runner) Download(ctx context.Context, q catalog.Query) ([]models.FilingResult, error) {
	entries, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := r.runPool(ctx, entries, func(ctx context.Context, e models.CatalogEntry) models.FilingResult {
		row := baseRow(e)
		row.Status = r.ensureRaw(ctx, e)
		return row
	})
	r.save(ctx, "download", rows)
	return rows, nil
}

// ExtractSection locates a named section in every resolved filing.
// Extraction is idempotent: an accession whose section cache file
// already exists reports extract_status=1 without re-reading the source.
func (r *Runner) ExtractSection(ctx context.Context, q catalog.Query, id section.ID) ([]models.FilingResult, error) {
	entries, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := r.runPool(ctx, entries, func(ctx context.Context, e models.CatalogEntry) (row models.FilingResult) {
		row = baseRow(e)
		// Named result: the deferred assignment lands on the returned row.
		status := 0
		defer func() { row.ExtractStatus = &status }()

		outPath := r.Resolver.SectionPath(string(id), e.FormType, e.CIK, e.DateFiled, e.Accession)
		if fi, err := os.Stat(outPath); err == nil && fi.Size() > 0 {
			row.Status = models.StatusAlreadyExists
			status = 1
			return row
		}

		row.Status = r.ensureRaw(ctx, e)
		if row.Status != models.StatusDownloadSuccess && row.Status != models.StatusAlreadyExists {
			return row
		}

		text, err := r.loadPayload(e, payload.ModeSection)
		if err != nil {
			r.logger().Warn("payload extraction failed", zap.String("accession", e.Accession), zap.Error(err))
			return row
		}

		res := section.Locate(text, id)
		if !res.Found {
			return row
		}

		sec := models.ExtractedSection{
			CIK:       e.CIK,
			FormType:  e.FormType,
			DateFiled: e.DateFiled,
			Accession: e.Accession,
			BodyText:  res.Text,
		}
		if err := writeSection(outPath, sec.Header(e.CompanyName)+res.Text); err != nil {
			r.logger().Warn("failed to write section file", zap.String("path", outPath), zap.Error(err))
			return row
		}
		status = 1
		return row
	})
	r.save(ctx, "extract_"+string(id), rows)
	return rows, nil
}

// ExtractEvents maps disclosed 8-K item codes for every resolved filing.
func (r *Runner) ExtractEvents(ctx context.Context, q catalog.Query) ([]models.FilingResult, error) {
	entries, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := r.runPool(ctx, entries, func(ctx context.Context, e models.CatalogEntry) models.FilingResult {
		row := baseRow(e)
		row.Status = r.ensureRaw(ctx, e)
		if row.Status != models.StatusDownloadSuccess && row.Status != models.StatusAlreadyExists {
			return row
		}
		text, err := r.loadPayload(e, payload.ModeSection)
		if err != nil {
			r.logger().Warn("payload extraction failed", zap.String("accession", e.Accession), zap.Error(err))
			return row
		}
		row.Events = events.Extract(text)
		return row
	})
	r.save(ctx, "events", rows)
	return rows, nil
}

// Search counts keyword hits per resolved filing and writes a highlight
// artifact for every filing with nonzero hits.
func (r *Runner) Search(ctx context.Context, q catalog.Query, terms []string) ([]models.FilingResult, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("pipeline: at least one search term is required")
	}
	entries, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := r.runPool(ctx, entries, func(ctx context.Context, e models.CatalogEntry) (row models.FilingResult) {
		row = baseRow(e)
		// Named result: the deferred assignment lands on the returned row.
		hits := 0
		defer func() { row.Hits = &hits }()

		row.Status = r.ensureRaw(ctx, e)
		if row.Status != models.StatusDownloadSuccess && row.Status != models.StatusAlreadyExists {
			return row
		}
		text, err := r.loadPayload(e, payload.ModeSearch)
		if err != nil {
			r.logger().Warn("payload extraction failed", zap.String("accession", e.Accession), zap.Error(err))
			return row
		}

		res := search.Search(text, terms)
		hits = res.HitCount
		if res.HitCount == 0 {
			return row
		}
		artifact := r.Resolver.SearchPath(e.FormType, e.CIK, e.DateFiled, e.Accession)
		if err := writeSection(artifact, res.Excerpts); err != nil {
			r.logger().Warn("failed to write search artifact", zap.String("path", artifact), zap.Error(err))
		}
		return row
	})
	r.save(ctx, "search", rows)
	return rows, nil
}

// Sentiment scores every resolved filing against the lexicon.
func (r *Runner) Sentiment(ctx context.Context, q catalog.Query, lex *sentiment.Lexicon) ([]models.FilingResult, error) {
	entries, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := r.runPool(ctx, entries, func(ctx context.Context, e models.CatalogEntry) models.FilingResult {
		row := baseRow(e)
		row.Status = r.ensureRaw(ctx, e)
		if row.Status != models.StatusDownloadSuccess && row.Status != models.StatusAlreadyExists {
			return row
		}
		text, err := r.loadPayload(e, payload.ModeSection)
		if err != nil {
			r.logger().Warn("payload extraction failed", zap.String("accession", e.Accession), zap.Error(err))
			return row
		}
		rec := sentiment.Score(text, lex)
		if fi, err := os.Stat(e.DestPath); err == nil {
			rec.FileSize = fi.Size()
		}
		row.Sentiment = &rec
		return row
	})
	r.save(ctx, "sentiment", rows)
	return rows, nil
}

// loadPayload reads a cached raw filing and extracts its normalized
// payload text.
func (r *Runner) loadPayload(e models.CatalogEntry, mode payload.Mode) (string, error) {
	raw, err := os.ReadFile(e.DestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read cached filing: %w", err)
	}
	return payload.Extract(string(raw), mode)
}

func writeSection(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
