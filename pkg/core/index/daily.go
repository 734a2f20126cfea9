package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"edgarbulk/pkg/models"
)

// Daily index URL conventions changed three times over EDGAR's history.
// Each era formats the date component differently; the same-day fallback
// covers indexes not yet moved into the quarterly directory.
//
//	pre-1999:  daily-index/{year}/QTR{q}/master.MMDDYY.idx
//	1999-2011: daily-index/{year}/QTR{q}/master.MMDDYYYY.idx
//	2012+:     daily-index/{year}/QTR{q}/master.YYYYMMDD.idx
//	fallback:  daily-index/master.YYYYMMDD.idx
func (s *Store) dailyURLs(date time.Time) []string {
	q := (int(date.Month())-1)/3 + 1
	prefix := fmt.Sprintf("%s/Archives/edgar/daily-index", s.baseURL)
	quarterly := fmt.Sprintf("%s/%d/QTR%d", prefix, date.Year(), q)

	switch {
	case date.Year() < 1999:
		return []string{
			fmt.Sprintf("%s/master.%s.idx", quarterly, date.Format("010206")),
		}
	case date.Year() <= 2011:
		return []string{
			fmt.Sprintf("%s/master.%s.idx", quarterly, date.Format("01022006")),
		}
	default:
		return []string{
			fmt.Sprintf("%s/master.%s.idx", quarterly, date.Format("20060102")),
			fmt.Sprintf("%s/master.%s.idx", prefix, date.Format("20060102")),
		}
	}
}

func (s *Store) dailySnapshotPath(date time.Time) string {
	return filepath.Join(s.cacheDir, "index", "daily", fmt.Sprintf("master_%s.gob", date.Format("20060102")))
}

func (s *Store) dailyRawPath(date time.Time) string {
	return filepath.Join(s.cacheDir, "index", "daily", fmt.Sprintf("%s_master.idx", date.Format("20060102")))
}

// DailyIndex returns the filings indexed on one date, resolving the URL
// pattern for the date's era. A date whose snapshot is already cached is
// returned without any network call. When no pattern matches, the last
// download error is reported as a fatal, per-date failure.
func (s *Store) DailyIndex(ctx context.Context, date time.Time) ([]models.IndexRecord, error) {
	if recs, err := s.loadSnapshot(s.dailySnapshotPath(date)); err == nil {
		s.log.Debug("daily snapshot hit", zap.String("date", date.Format("2006-01-02")))
		return recs, nil
	}

	raw := s.dailyRawPath(date)
	var lastErr error
	fetched := false
	if fi, err := os.Stat(raw); err == nil && fi.Size() > 0 {
		fetched = true
	} else {
		for _, u := range s.dailyURLs(date) {
			if _, err := s.client.Fetch(ctx, u, raw); err != nil {
				lastErr = err
				continue
			}
			fetched = true
			break
		}
	}
	if !fetched {
		return nil, fmt.Errorf("no daily index found for %s: %w", date.Format("2006-01-02"), lastErr)
	}

	f, err := os.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to open daily index: %w", err)
	}
	defer f.Close()

	quarter := (int(date.Month())-1)/3 + 1
	recs, err := ParseMaster(f, date.Year(), quarter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily index for %s: %w", date.Format("2006-01-02"), err)
	}

	if err := s.saveSnapshot(s.dailySnapshotPath(date), recs); err != nil {
		return nil, err
	}
	s.log.Info("daily index built",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("records", len(recs)))
	return recs, nil
}
