package report

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"threadmirror/internal/ratelimit"
	"threadmirror/internal/retry"
	"threadmirror/internal/types"
)

// Informational return values. These are persisted as-is; only a ModelError
// blocks the report field.
const (
	InfoNoTextContent   = "Info: thread has no text content, no report generated."
	DescSkippedQuota    = "Skipped (image limit reached)"
	defaultMaxImages    = 10
)

// DescriptionCache stores image descriptions across runs, keyed by URL hash.
type DescriptionCache interface {
	GetImageDescription(urlHash string) (string, bool, error)
	PutImageDescription(urlHash, description string) error
}

// Generator produces AI reports for threads through one pluggable backend.
//
// A multimodal attempt (text plus images) is made first when the thread has
// images; any failure there falls through to a single text-only attempt.
// Both attempts run under the retry policy and the rate limiter. A
// non-retryable failure disables the backend for the remainder of the run.
type Generator struct {
	provider  Provider
	limiter   *ratelimit.Limiter
	cache     DescriptionCache
	fetcher   *imageFetcher
	policy    retry.Policy
	maxImages int
	disabled  atomic.Bool
	log       logrus.FieldLogger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRateLimiter gates backend calls through l.
func WithRateLimiter(l *ratelimit.Limiter) GeneratorOption {
	return func(g *Generator) { g.limiter = l }
}

// WithDescriptionCache enables cross-run image description caching.
func WithDescriptionCache(c DescriptionCache) GeneratorOption {
	return func(g *Generator) { g.cache = c }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) GeneratorOption {
	return func(g *Generator) { g.policy = p }
}

// WithMaxImages overrides the per-run image quota.
func WithMaxImages(n int) GeneratorOption {
	return func(g *Generator) { g.maxImages = n }
}

// NewGenerator creates a report generator over the given backend.
func NewGenerator(provider Provider, log logrus.FieldLogger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:  provider,
		fetcher:   newImageFetcher(),
		policy:    retry.DefaultPolicy(),
		maxImages: defaultMaxImages,
		log:       log.WithField("component", "report"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a report for the thread. It returns a normal report
// string, an informational string for benign outcomes, or a ModelError when
// the backend failed after fallback and retries.
func (g *Generator) Generate(ctx context.Context, thread *types.Thread, canonicalID string) (string, error) {
	log := g.log.WithField("post_id", canonicalID)

	if !thread.HasText() {
		log.Info("Thread has no text, skipping backend call")
		return InfoNoTextContent, nil
	}

	images := g.collectImages(ctx, thread)

	if len(images) > 0 {
		out, err := g.call(ctx, Request{Prompt: buildReportPrompt(thread, true), Images: images})
		if err == nil {
			return out, nil
		}
		log.WithError(err).Warn("Multimodal report failed, falling back to text-only")
	}

	out, err := g.call(ctx, Request{Prompt: buildReportPrompt(thread, false)})
	if err != nil {
		return "", &ModelError{Provider: g.provider.Name(), Op: "generate report", Err: err}
	}
	return out, nil
}

// collectImages downloads up to the quota of thread images, main post first.
// Video thumbnails and failed downloads are skipped, not fatal.
func (g *Generator) collectImages(ctx context.Context, thread *types.Thread) []ImagePayload {
	var payloads []ImagePayload
	for _, img := range thread.AllImages() {
		if len(payloads) >= g.maxImages {
			break
		}
		url := RewriteMirrorImageURL(img.URL)
		if isVideoThumbnail(url) {
			continue
		}
		payload, err := g.fetcher.fetch(ctx, url)
		if err != nil {
			g.log.WithError(err).WithField("url", url).Warn("Skipping image")
			continue
		}
		payloads = append(payloads, *payload)
	}
	return payloads
}

// DescribeImages fills in Description for every image in the thread, using
// the cache where possible. Cache misses within the quota are downloaded and
// described concurrently; images beyond the quota get a placeholder. Errors
// on individual images are logged and leave the description empty; only a
// non-retryable backend failure aborts the pass.
func (g *Generator) DescribeImages(ctx context.Context, thread *types.Thread) error {
	posts := make([]*types.Post, 0, len(thread.Replies)+1)
	posts = append(posts, &thread.MainPost)
	for i := range thread.Replies {
		posts = append(posts, &thread.Replies[i])
	}

	var (
		mu   sync.Mutex
		used int
	)
	eg, ctx := errgroup.WithContext(ctx)

	for _, post := range posts {
		for i := range post.Images {
			img := &post.Images[i]
			url := RewriteMirrorImageURL(img.URL)
			if isVideoThumbnail(url) {
				continue
			}

			hash := HashURL(url)
			if g.cache != nil {
				desc, ok, err := g.cache.GetImageDescription(hash)
				if err != nil {
					g.log.WithError(err).Warn("Image cache lookup failed")
				} else if ok {
					img.Description = desc
					mu.Lock()
					used++ // cache hits count toward the quota
					mu.Unlock()
					continue
				}
			}

			mu.Lock()
			if used >= g.maxImages {
				mu.Unlock()
				img.Description = DescSkippedQuota
				continue
			}
			used++
			mu.Unlock()

			post, img, url, hash := post, img, url, hash
			eg.Go(func() error {
				desc, err := g.describeOne(ctx, post, url)
				if err != nil {
					g.log.WithError(err).WithField("url", url).Warn("Image description failed")
					if IsNonRetryable(err) {
						return &ModelError{Provider: g.provider.Name(), Op: "describe image", Err: err}
					}
					return nil
				}
				img.Description = desc
				if g.cache != nil && !looksLikeErrorString(desc) {
					if err := g.cache.PutImageDescription(hash, desc); err != nil {
						g.log.WithError(err).Warn("Image cache write failed")
					}
				}
				return nil
			})
		}
	}

	return eg.Wait()
}

func (g *Generator) describeOne(ctx context.Context, post *types.Post, url string) (string, error) {
	payload, err := g.fetcher.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return g.call(ctx, Request{
		Prompt: buildDescribePrompt(post),
		Images: []ImagePayload{*payload},
	})
}

// call runs one backend request under the rate limiter and retry policy.
// A non-retryable failure flips the disabled flag for the rest of the run.
func (g *Generator) call(ctx context.Context, req Request) (string, error) {
	if g.disabled.Load() {
		return "", ErrBackendDisabled
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	policy := g.policy
	policy.NonRetryable = IsNonRetryable
	out, err := retry.Do(ctx, policy, func() (string, error) {
		return g.provider.Generate(ctx, req)
	})
	if err != nil && IsNonRetryable(err) {
		g.disabled.Store(true)
		g.log.WithError(err).Error("Backend disabled for the remainder of the run")
	}
	return out, err
}

// looksLikeErrorString guards the cache against storing failure text as if
// it were a description.
func looksLikeErrorString(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "Error:") ||
		strings.HasPrefix(s, "Warning:") ||
		strings.HasPrefix(s, "Info:")
}
