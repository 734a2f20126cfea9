package index

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"edgarbulk/pkg/core/download"
	"edgarbulk/pkg/models"
)

// Store acquires and caches annual and daily filing indexes. The on-disk
// snapshots are the single source of truth for already-done work across
// process restarts.
type Store struct {
	client   *download.Client
	baseURL  string
	cacheDir string
	log      *zap.Logger

	// now is swappable in tests (elapsed-quarter computation).
	now func() time.Time
}

// NewStore creates an index store rooted at cacheDir.
func NewStore(client *download.Client, baseURL, cacheDir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client:   client,
		baseURL:  baseURL,
		cacheDir: cacheDir,
		log:      log,
		now:      time.Now,
	}
}

// snapshotPath is the annual snapshot file for a year.
func (s *Store) snapshotPath(year int) string {
	return filepath.Join(s.cacheDir, "index", fmt.Sprintf("master_%d.gob", year))
}

// quarterPath is the cached compressed quarterly index file.
func (s *Store) quarterPath(year, quarter int) string {
	return filepath.Join(s.cacheDir, "index", fmt.Sprintf("%dQTR%d_master.gz", year, quarter))
}

func (s *Store) quarterURL(year, quarter int) string {
	return fmt.Sprintf("%s/Archives/edgar/full-index/%d/QTR%d/master.gz", s.baseURL, year, quarter)
}

// elapsedQuarters reports how many quarters of a year exist: all 4 for
// past years, up to the current quarter for the present year.
func (s *Store) elapsedQuarters(year int) int {
	now := s.now()
	if year < now.Year() {
		return 4
	}
	if year > now.Year() {
		return 0
	}
	return (int(now.Month())-1)/3 + 1
}

// AnnualIndex returns the full index of filings for a year, downloading
// and parsing any quarters not yet cached. If the annual snapshot already
// exists it is loaded without any network access; otherwise quarterly
// files cached by earlier partial runs are reused.
func (s *Store) AnnualIndex(ctx context.Context, year int) ([]models.IndexRecord, error) {
	if year < 1993 {
		return nil, fmt.Errorf("EDGAR full-text indexes begin in 1993, got year %d", year)
	}
	quarters := s.elapsedQuarters(year)
	if quarters == 0 {
		return nil, fmt.Errorf("year %d has no elapsed quarters yet", year)
	}

	if recs, err := s.loadSnapshot(s.snapshotPath(year)); err == nil {
		s.log.Debug("annual snapshot hit", zap.Int("year", year), zap.Int("records", len(recs)))
		return recs, nil
	}

	var all []models.IndexRecord
	for q := 1; q <= quarters; q++ {
		recs, err := s.quarterIndex(ctx, year, q)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire %d QTR%d: %w", year, q, err)
		}
		all = append(all, recs...)
	}

	if err := s.saveSnapshot(s.snapshotPath(year), all); err != nil {
		return nil, err
	}
	s.log.Info("annual index built",
		zap.Int("year", year),
		zap.Int("quarters", quarters),
		zap.Int("records", len(all)))
	return all, nil
}

// quarterIndex fetches (or reuses) one quarterly master file and parses
// it. The downloader's AlreadyCached path gives per-quarter idempotence.
func (s *Store) quarterIndex(ctx context.Context, year, quarter int) ([]models.IndexRecord, error) {
	dest := s.quarterPath(year, quarter)
	if _, err := s.client.Fetch(ctx, s.quarterURL(year, quarter), dest); err != nil {
		return nil, err
	}

	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open quarterly index: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress quarterly index: %w", err)
	}
	defer gz.Close()

	return ParseMaster(gz, year, quarter)
}

func (s *Store) loadSnapshot(path string) ([]models.IndexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []models.IndexRecord
	if err := gob.NewDecoder(f).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return recs, nil
}

func (s *Store) saveSnapshot(path string, recs []models.IndexRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(recs); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
