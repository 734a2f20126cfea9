package pipeline

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"edgarbulk/pkg/core/catalog"
	"edgarbulk/pkg/core/download"
	"edgarbulk/pkg/core/index"
	"edgarbulk/pkg/core/section"
	"edgarbulk/pkg/core/sentiment"
	"edgarbulk/pkg/models"
)

// indexFixture yields one filing per quarter, each with a distinct
// accession so every entry maps to its own cache path.
func indexFixture(quarter int) string {
	return fmt.Sprintf(`banner
--------------------
320193|APPLE COMPUTER INC|10-K|1998-01-05|edgar/data/320193/0000320193-98-00010%d.txt
`, quarter)
}

func filingFixture() string {
	words := make([]string, 150)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	body := strings.Join(words, " ")
	return "<SEC-DOCUMENT>\n<DOCUMENT>\nItem 1. Business\n\n" +
		"We design hedging strategies. More hedging follows. Final hedging note.\n" +
		body + "\n\nItem 2. Properties\n</DOCUMENT>\n"
}

type memSink struct {
	ops  []string
	rows int
}

func (m *memSink) SaveBatch(_ context.Context, _ string, op string, rows []models.FilingResult) error {
	m.ops = append(m.ops, op)
	m.rows += len(rows)
	return nil
}

func newTestRunner(t *testing.T) (*Runner, *memSink) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "full-index"):
			quarter := 1
			fmt.Sscanf(r.URL.Path, "/Archives/edgar/full-index/1998/QTR%d/", &quarter)
			gz := gzip.NewWriter(w)
			gz.Write([]byte(indexFixture(quarter)))
			gz.Close()
		case strings.Contains(r.URL.Path, "edgar/data"):
			w.Write([]byte(filingFixture()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := download.NewClient(download.Options{
		UserAgent:  "edgarbulk test test@example.com",
		RatePerSec: 1000,
		Burst:      1000,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cacheDir := t.TempDir()
	store := index.NewStore(client, srv.URL, cacheDir, nil)
	resolver := catalog.NewResolver(store, srv.URL, cacheDir, nil)
	sink := &memSink{}
	return &Runner{
		Resolver: resolver,
		Client:   client,
		Sink:     sink,
		Workers:  3,
		BaseURL:  srv.URL,
	}, sink
}

func tenKQuery() catalog.Query {
	return catalog.Query{
		CIKs:      []int{320193},
		FormTypes: []string{"10-K"},
		Years:     []int{1998},
	}
}

func TestDownload_StatusProgression(t *testing.T) {
	r, sink := newTestRunner(t)
	ctx := context.Background()

	rows, err := r.Download(ctx, tenKQuery())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(rows) != 4 { // one filing per quarter
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Status != models.StatusDownloadSuccess {
			t.Errorf("first-run status = %q, want download success", row.Status)
		}
	}

	// Second run: everything already cached.
	rows, err = r.Download(ctx, tenKQuery())
	if err != nil {
		t.Fatalf("second Download failed: %v", err)
	}
	for _, row := range rows {
		if row.Status != models.StatusAlreadyExists {
			t.Errorf("re-run status = %q, want already exists", row.Status)
		}
	}
	if len(sink.ops) != 2 {
		t.Errorf("sink saw %d batches, want 2", len(sink.ops))
	}
}

func TestDownload_ConfirmationGateDeclined(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Confirm = func(n int) bool {
		if n == 0 {
			t.Error("gate consulted with zero new downloads")
		}
		return false
	}
	_, err := r.Download(context.Background(), tenKQuery())
	if err != ErrDeclined {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
}

func TestExtractSection_FoundAndIdempotent(t *testing.T) {
	r, _ := newTestRunner(t)
	ctx := context.Background()

	rows, err := r.ExtractSection(ctx, tenKQuery(), section.BusinessDescription)
	if err != nil {
		t.Fatalf("ExtractSection failed: %v", err)
	}
	for _, row := range rows {
		if row.ExtractStatus == nil || *row.ExtractStatus != 1 {
			t.Fatalf("extract_status = %v, want 1", row.ExtractStatus)
		}
	}

	// The section file carries the metadata header block.
	e := rows[0]
	path := r.Resolver.SectionPath(string(section.BusinessDescription), e.FormType, e.CIK, e.DateFiled, e.Accession)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("section cache file missing: %v", err)
	}
	if !strings.Contains(string(data), "CIK: 320193") {
		t.Errorf("metadata header missing from section file")
	}
	if !strings.Contains(string(data), "hedging strategies") {
		t.Errorf("section body missing")
	}

	// Re-run is a no-op returning extract_status=1.
	rows, err = r.ExtractSection(ctx, tenKQuery(), section.BusinessDescription)
	if err != nil {
		t.Fatalf("re-run failed: %v", err)
	}
	for _, row := range rows {
		if *row.ExtractStatus != 1 {
			t.Errorf("idempotent re-run lost extract_status")
		}
		if row.Status != models.StatusAlreadyExists {
			t.Errorf("re-run status = %q", row.Status)
		}
	}
}

func TestSearch_HitsAndArtifact(t *testing.T) {
	r, _ := newTestRunner(t)
	rows, err := r.Search(context.Background(), tenKQuery(), []string{"hedging"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	row := rows[0]
	if row.Hits == nil || *row.Hits != 3 {
		t.Fatalf("hits = %v, want 3", row.Hits)
	}
	artifact := r.Resolver.SearchPath(row.FormType, row.CIK, row.DateFiled, row.Accession)
	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("search artifact missing: %v", err)
	}
	if strings.Count(string(data), "<mark>") != 3 {
		t.Errorf("expected 3 highlighted excerpts in artifact")
	}
}

func TestSearch_RequiresTerms(t *testing.T) {
	r, _ := newTestRunner(t)
	if _, err := r.Search(context.Background(), tenKQuery(), nil); err == nil {
		t.Fatal("expected error for empty term list")
	}
}

func TestSentiment_Scores(t *testing.T) {
	r, _ := newTestRunner(t)
	lex := &sentiment.Lexicon{
		Uncertainty: map[string]bool{"hedging": true},
	}
	rows, err := r.Sentiment(context.Background(), tenKQuery(), lex)
	if err != nil {
		t.Fatalf("Sentiment failed: %v", err)
	}
	rec := rows[0].Sentiment
	if rec == nil {
		t.Fatal("sentiment record missing")
	}
	if rec.Uncertainty != 3 {
		t.Errorf("uncertainty count = %d, want 3", rec.Uncertainty)
	}
	if rec.WordCount == 0 || rec.FileSize == 0 {
		t.Errorf("document statistics missing: %+v", rec)
	}
}

func TestResultsKeepResolverOrder(t *testing.T) {
	r, _ := newTestRunner(t)
	rows, err := r.Download(context.Background(), tenKQuery())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].CIK < rows[i-1].CIK {
			t.Fatalf("rows out of resolver order at %d", i)
		}
	}
}
