// Package catalog resolves cached index records into downloadable
// filing entries with deterministic local cache paths.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"edgarbulk/pkg/core/index"
	"edgarbulk/pkg/models"
)

// All selects every CIK or every observed form type.
const All = "ALL"

// ErrNoRecords reports the aggregate empty-result condition: no index
// record survived filtering. Distinct from per-row download failures.
var ErrNoRecords = errors.New("catalog: no records match the requested filters")

// Resolver filters cached index records and maps each match to its local
// cache path and remote URL.
type Resolver struct {
	store    *index.Store
	baseURL  string
	cacheDir string
	log      *zap.Logger
}

// NewResolver creates a resolver over an index store.
func NewResolver(store *index.Store, baseURL, cacheDir string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, baseURL: baseURL, cacheDir: cacheDir, log: log}
}

// Query selects filings from the cached indexes. CIKs nil (or the All
// sentinel via AllCIKs) matches every filer; FormTypes containing All
// expands to the distinct form types observed in the loaded years.
type Query struct {
	CIKs      []int
	AllCIKs   bool
	FormTypes []string
	Years     []int
	Quarters  []int // empty = all quarters
}

// Resolve loads each requested year's index (acquiring it when absent),
// applies the set-intersection filters and returns entries sorted by CIK
// then filing year, stable on original index order.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	cikSet := make(map[int]bool, len(q.CIKs))
	for _, c := range q.CIKs {
		cikSet[c] = true
	}
	quarterSet := make(map[int]bool, len(q.Quarters))
	for _, qt := range q.Quarters {
		quarterSet[qt] = true
	}

	formSet, expandForms := buildFormSet(q.FormTypes)

	var entries []models.CatalogEntry
	for _, year := range q.Years {
		recs, err := r.store.AnnualIndex(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("failed to load %d index: %w", year, err)
		}

		if expandForms {
			for _, rec := range recs {
				formSet[rec.FormType] = true
			}
		}

		for _, rec := range recs {
			if !q.AllCIKs && !cikSet[rec.CIK] {
				continue
			}
			if !formSet[rec.FormType] {
				continue
			}
			if len(quarterSet) > 0 && !quarterSet[rec.Quarter] {
				continue
			}
			acc := rec.AccessionNumber()
			if acc == "" {
				continue
			}
			entries = append(entries, models.CatalogEntry{
				IndexRecord: rec,
				Accession:   acc,
				DestPath:    r.DestPath(rec.FormType, rec.CIK, rec.DateFiled, acc),
			})
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoRecords
	}

	// Stable sort keeps original index order among ties.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CIK != entries[j].CIK {
			return entries[i].CIK < entries[j].CIK
		}
		return entries[i].FilingYear < entries[j].FilingYear
	})

	r.log.Debug("resolved catalog", zap.Int("entries", len(entries)))
	return entries, nil
}

// buildFormSet returns the lookup set and whether it must be expanded
// from the observed index.
func buildFormSet(formTypes []string) (map[string]bool, bool) {
	set := make(map[string]bool, len(formTypes))
	expand := len(formTypes) == 0
	for _, ft := range formTypes {
		if strings.EqualFold(ft, All) {
			expand = true
			continue
		}
		set[ft] = true
	}
	return set, expand
}

// DestPath computes the deterministic cache path for a filing. The tuple
// (form, cik, date, accession) is the cache key; distinct filings never
// collide because the accession number is unique per filing.
func (r *Resolver) DestPath(formType string, cik int, dateFiled, accession string) string {
	form := sanitizeForm(formType)
	name := fmt.Sprintf("%d_%s_%s_%s.txt", cik, form, dateFiled, accession)
	return filepath.Join(r.cacheDir, "filings", form, fmt.Sprintf("%d", cik), name)
}

// SectionPath is the cache path for an extracted section, under a
// separate namespace per section type.
func (r *Resolver) SectionPath(section, formType string, cik int, dateFiled, accession string) string {
	form := sanitizeForm(formType)
	name := fmt.Sprintf("%d_%s_%s_%s.txt", cik, form, dateFiled, accession)
	return filepath.Join(r.cacheDir, "sections", section, form, name)
}

// SearchPath is the cache path for a filing's keyword-search artifact.
func (r *Resolver) SearchPath(formType string, cik int, dateFiled, accession string) string {
	form := sanitizeForm(formType)
	name := fmt.Sprintf("%d_%s_%s_%s.html", cik, form, dateFiled, accession)
	return filepath.Join(r.cacheDir, "search", form, name)
}

// sanitizeForm makes a form type safe as a path component ("10-K/A").
func sanitizeForm(formType string) string {
	return strings.ReplaceAll(formType, "/", "_")
}

// Partition splits entries into those whose raw filing is already cached
// and those requiring a download, so callers can report the exact number
// of new downloads before any network I/O (confirmation gate support).
func Partition(entries []models.CatalogEntry) (cached, missing []models.CatalogEntry) {
	for _, e := range entries {
		if fi, err := os.Stat(e.DestPath); err == nil && fi.Size() > 0 {
			cached = append(cached, e)
		} else {
			missing = append(missing, e)
		}
	}
	return cached, missing
}
