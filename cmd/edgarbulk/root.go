package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"edgarbulk/pkg/core/catalog"
	"edgarbulk/pkg/core/config"
	"edgarbulk/pkg/core/download"
	"edgarbulk/pkg/core/index"
	"edgarbulk/pkg/core/pipeline"
	"edgarbulk/pkg/core/store"
)

var (
	flagConfig   string
	flagCIKs     []string
	flagForms    []string
	flagYears    []int
	flagQuarters []int
	flagWorkers  int
	flagYes      bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "edgarbulk",
	Short: "Bulk acquisition and extraction of SEC EDGAR filings",
	Long: `edgarbulk builds local catalogs of SEC EDGAR filings, downloads them
under the SEC request-rate ceiling and extracts structured data:
named sections, 8-K event codes, keyword matches and lexicon
sentiment counts.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to YAML config file")
	pf.StringSliceVar(&flagCIKs, "cik", []string{"ALL"}, "CIK numbers to select, or ALL")
	pf.StringSliceVar(&flagForms, "form", []string{"10-K"}, "form types to select, or ALL")
	pf.IntSliceVar(&flagYears, "year", nil, "filing years to select")
	pf.IntSliceVar(&flagQuarters, "quarter", nil, "quarters to select (default all)")
	pf.IntVar(&flagWorkers, "workers", 0, "worker pool size (default from config)")
	pf.BoolVarP(&flagYes, "yes", "y", false, "skip the download confirmation gate")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// runtime bundles everything a subcommand needs.
type runtime struct {
	cfg    *config.Config
	log    *zap.Logger
	idx    *index.Store
	runner *pipeline.Runner
	db     *store.DB
}

func (r *runtime) close() {
	if r.db != nil {
		r.db.Close()
	}
	_ = r.log.Sync()
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagYes {
		cfg.SkipConfirm = true
	}

	log := zap.Must(zap.NewProduction())
	if flagVerbose {
		log = zap.Must(zap.NewDevelopment())
	}

	client, err := download.NewClient(download.Options{
		UserAgent:   cfg.UserAgent,
		RatePerSec:  cfg.RatePerSec,
		Burst:       cfg.Burst,
		MaxAttempts: cfg.MaxAttempts,
		MaxBackoff:  cfg.MaxBackoff(),
		Timeout:     cfg.Timeout(),
		ProxyURL:    cfg.ProxyURL,
	}, log)
	if err != nil {
		return nil, err
	}

	idx := index.NewStore(client, cfg.BaseURL, cfg.CacheDir, log)
	resolver := catalog.NewResolver(idx, cfg.BaseURL, cfg.CacheDir, log)

	rt := &runtime{cfg: cfg, log: log, idx: idx}
	rt.runner = &pipeline.Runner{
		Resolver: resolver,
		Client:   client,
		Workers:  cfg.Workers,
		Log:      log,
		BaseURL:  cfg.BaseURL,
	}
	if !cfg.SkipConfirm {
		rt.runner.Confirm = promptConfirm
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open results store: %w", err)
		}
		rt.db = db
		rt.runner.Sink = store.NewResultsRepo(db)
	}
	return rt, nil
}

// promptConfirm is the interactive download gate: evaluated once per
// invocation, before any filing download begins.
func promptConfirm(newDownloads int) bool {
	fmt.Printf("%d new filings will be downloaded. Continue? [y/N] ", newDownloads)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// buildQuery translates the shared selection flags.
func buildQuery() (catalog.Query, error) {
	q := catalog.Query{
		FormTypes: flagForms,
		Years:     flagYears,
		Quarters:  flagQuarters,
	}
	if len(flagYears) == 0 {
		return q, fmt.Errorf("at least one --year is required")
	}
	for _, y := range flagYears {
		if y < 1993 {
			return q, fmt.Errorf("year %d predates EDGAR full-text indexes", y)
		}
	}
	for _, raw := range flagCIKs {
		if strings.EqualFold(raw, catalog.All) {
			q.AllCIKs = true
			continue
		}
		cik, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return q, fmt.Errorf("non-numeric cik %q", raw)
		}
		q.CIKs = append(q.CIKs, cik)
	}
	return q, nil
}
