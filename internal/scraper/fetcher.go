package scraper

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"threadmirror/internal/retry"
)

// PageResult is what a single browser navigation produced: the document's
// HTTP status and the rendered HTML.
type PageResult struct {
	Status int
	HTML   string
}

// PageLoader drives one browser page load. Implementations return an error
// only for transport-level failures (no response, timeout); HTTP error
// statuses come back in the PageResult.
type PageLoader interface {
	Load(ctx context.Context, url string) (*PageResult, error)
}

// FetchError means every configured mirror instance was exhausted.
type FetchError struct {
	URL string
}

func (e *FetchError) Error() string {
	return "all mirror instances failed for " + e.URL
}

// Fetcher tries mirror instances in order until one returns usable HTML.
// The instance that worked becomes preferred for subsequent calls; failover
// is sticky, not round-robin.
type Fetcher struct {
	instances []string
	loader    PageLoader
	policy    retry.Policy
	log       logrus.FieldLogger

	mu        sync.Mutex
	preferred string
}

// NewFetcher creates a fetcher over the given ordered instance list.
func NewFetcher(instances []string, loader PageLoader, policy retry.Policy, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		instances: instances,
		loader:    loader,
		policy:    policy,
		log:       log.WithField("component", "fetcher"),
	}
}

// Fetch resolves rawURL against each instance in preference order and
// returns the first usable HTML along with the instance that served it.
//
// Per instance: transport errors and timeouts are retried under the policy;
// redirects, server errors and empty bodies fail over immediately. A 2xx/4xx
// response with a body is accepted even if it contains an error marker; that
// judgement belongs to the parser.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (html string, instance string, err error) {
	for _, inst := range f.order() {
		target, nerr := Normalize(rawURL, inst)
		if nerr != nil {
			return "", "", nerr
		}

		log := f.log.WithField("url", target)
		res, lerr := retry.Do(ctx, f.policy, func() (*PageResult, error) {
			return f.loader.Load(ctx, target)
		})
		if lerr != nil {
			log.WithError(lerr).Warn("Instance unreachable, trying next")
			continue
		}
		if res.Status >= 300 && res.Status < 400 {
			log.WithField("status", res.Status).Warn("Redirected, trying next instance")
			continue
		}
		if res.Status >= 500 {
			log.WithField("status", res.Status).Warn("Server error, trying next instance")
			continue
		}
		if strings.TrimSpace(res.HTML) == "" {
			log.Warn("Empty HTML, trying next instance")
			continue
		}

		f.setPreferred(inst)
		log.WithField("bytes", len(res.HTML)).Info("Fetched HTML")
		return res.HTML, inst, nil
	}
	return "", "", &FetchError{URL: rawURL}
}

// order returns the configured instances with the preferred one first.
func (f *Fetcher) order() []string {
	f.mu.Lock()
	preferred := f.preferred
	f.mu.Unlock()

	if preferred == "" {
		return f.instances
	}
	out := make([]string, 0, len(f.instances))
	out = append(out, preferred)
	for _, inst := range f.instances {
		if inst != preferred {
			out = append(out, inst)
		}
	}
	return out
}

func (f *Fetcher) setPreferred(inst string) {
	f.mu.Lock()
	f.preferred = inst
	f.mu.Unlock()
}
