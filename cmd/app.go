package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"threadmirror/internal/config"
	"threadmirror/internal/pipeline"
	"threadmirror/internal/ratelimit"
	"threadmirror/internal/report"
	"threadmirror/internal/retry"
	"threadmirror/internal/scraper"
	"threadmirror/internal/store"
)

// app wires the full component graph for one process.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *store.Store
	pipeline *pipeline.Pipeline
}

// newApp constructs every component from configuration. The caller owns
// Close.
func newApp() (*app, error) {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey() == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	st, err := store.Open(cfg.DBPath, cfg.SnapshotDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryDelay,
	}

	loader := scraper.NewChromeLoader(cfg.Headless, log)
	fetcher := scraper.NewFetcher(cfg.Instances, loader, policy, log)
	extractor := scraper.NewExtractor(log)

	provider, err := report.NewProvider(cfg.Provider, cfg.APIKey(), cfg.Model)
	if err != nil {
		st.Close()
		return nil, err
	}
	generator := report.NewGenerator(provider, log,
		report.WithRateLimiter(ratelimit.New(cfg.RequestsPerMinute, time.Minute)),
		report.WithDescriptionCache(st),
		report.WithRetryPolicy(policy),
		report.WithMaxImages(cfg.MaxImages),
	)

	p := pipeline.New(fetcher, extractor, generator, st, pipeline.Options{
		SaveFailedHTML: cfg.SaveFailedHTML,
		FailedHTMLDir:  cfg.FailedHTMLDir,
		StrictReport:   cfg.StrictReport,
		DescribeImages: cfg.DescribeImages,
	}, log)

	return &app{cfg: cfg, log: log, store: st, pipeline: p}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close store")
	}
}
