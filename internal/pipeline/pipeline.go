package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"threadmirror/internal/report"
	"threadmirror/internal/scraper"
	"threadmirror/internal/store"
	"threadmirror/internal/types"
)

// State names the stage a run ended in.
type State string

const (
	StatePrepared   State = "PREPARED"
	StateFetched    State = "FETCHED"
	StateParsed     State = "PARSED"
	StateReconciled State = "RECONCILED"
	StateReported   State = "REPORTED"
	StatePersisted  State = "PERSISTED"
	StateSkipped    State = "SKIPPED"
	StateFailed     State = "FAILED"
)

// Fetcher retrieves rendered HTML for a thread URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (html, instance string, err error)
}

// Extractor turns HTML into a structured thread.
type Extractor interface {
	Parse(html, baseURL string) (*types.Thread, error)
}

// Reporter produces the AI report and optional image descriptions.
type Reporter interface {
	Generate(ctx context.Context, thread *types.Thread, canonicalID string) (string, error)
	DescribeImages(ctx context.Context, thread *types.Thread) error
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	Seen(id string) bool
	Save(thread *types.Thread, originalURL, aiReport string) error
	GetAuthorNote(handle string) (string, error)
}

// Options tune run behavior.
type Options struct {
	// SaveFailedHTML preserves raw HTML under FailedHTMLDir when parsing
	// fails, for offline diagnosis.
	SaveFailedHTML bool
	FailedHTMLDir  string

	// StrictReport makes a terminal report failure fail the whole run.
	// When false, the thread is persisted with an "Error: ..." report so
	// the scrape is not lost.
	StrictReport bool

	// DescribeImages runs the per-image captioning pass before the report.
	DescribeImages bool
}

// Result is the outcome of one run.
type Result struct {
	State  State
	PostID string
	Report string
	Thread *types.Thread
}

// Pipeline sequences fetch, parse, reconcile, report, and persist for one
// thread URL.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	reporter  Reporter
	store     Store
	opts      Options
	log       logrus.FieldLogger
}

func New(fetcher Fetcher, extractor Extractor, reporter Reporter, st Store, opts Options, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		reporter:  reporter,
		store:     st,
		opts:      opts,
		log:       log.WithField("component", "pipeline"),
	}
}

// Run processes one URL end to end. The returned Result always carries the
// terminal state; err is non-nil only for FAILED.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*Result, error) {
	log := p.log.WithField("url", rawURL)

	// The id the user asked for, taken from the unnormalized input. It can
	// differ from the page's main post id when a reply permalink was pasted.
	requestedID := scraper.ExtractStatusID(rawURL)

	if requestedID != "" && p.store.Seen(requestedID) {
		log.WithField("post_id", requestedID).Info("Already saved, skipping")
		return &Result{State: StateSkipped, PostID: requestedID}, nil
	}

	html, instance, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return p.fail(log, "fetch", rawURL, err)
	}

	thread, err := p.extractor.Parse(html, instance)
	if err != nil {
		var perr *scraper.ParseError
		if errors.As(err, &perr) && p.opts.SaveFailedHTML {
			p.saveFailedHTML(log, requestedID, html)
		}
		return p.fail(log, "parse", rawURL, err)
	}
	thread.Source = instance

	if reconcile(thread, requestedID) {
		log.WithFields(logrus.Fields{
			"requested_id": requestedID,
		}).Info("Swapped requested reply into main post slot")
	} else if thread.MainPost.PostID == "" && requestedID != "" {
		thread.MainPost.PostID = requestedID
	}

	canonicalID := thread.CanonicalID()
	p.attachAuthorNote(log, thread)

	if p.opts.DescribeImages {
		if err := p.reporter.DescribeImages(ctx, thread); err != nil {
			log.WithError(err).Warn("Image description pass failed")
		}
	}

	reportText, err := p.reporter.Generate(ctx, thread, canonicalID)
	if err != nil {
		var merr *report.ModelError
		if p.opts.StrictReport || !errors.As(err, &merr) {
			return p.fail(log, "report", rawURL, err)
		}
		log.WithError(err).Warn("Report failed, persisting partial record")
		reportText = "Error: " + err.Error()
	}

	// Recheck right before writing: the report call yielded, another run
	// may have saved this id in the meantime.
	if p.store.Seen(canonicalID) {
		log.WithField("post_id", canonicalID).Info("Saved concurrently, skipping")
		return &Result{State: StateSkipped, PostID: canonicalID}, nil
	}
	if err := p.store.Save(thread, rawURL, reportText); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return &Result{State: StateSkipped, PostID: canonicalID}, nil
		}
		return p.fail(log, "persist", rawURL, err)
	}

	log.WithField("post_id", canonicalID).Info("Pipeline run complete")
	return &Result{
		State:  StatePersisted,
		PostID: canonicalID,
		Report: reportText,
		Thread: thread,
	}, nil
}

func (p *Pipeline) fail(log logrus.FieldLogger, stage, url string, err error) (*Result, error) {
	wrapped := fmt.Errorf("%s stage failed for %s: %w", stage, url, err)
	log.WithError(err).WithField("stage", stage).Error("Pipeline run failed")
	return &Result{State: StateFailed}, wrapped
}

// attachAuthorNote copies any stored note about the main author into the
// thread's factual context so the report prompt can use it.
func (p *Pipeline) attachAuthorNote(log logrus.FieldLogger, thread *types.Thread) {
	handle := thread.MainPost.AuthorHandle
	if handle == "" {
		return
	}
	note, err := p.store.GetAuthorNote(handle)
	if err != nil {
		log.WithError(err).Warn("Author note lookup failed")
		return
	}
	if note != "" && thread.FactualContext == "" {
		thread.FactualContext = note
	}
}

// saveFailedHTML preserves raw HTML for offline diagnosis. Best effort.
func (p *Pipeline) saveFailedHTML(log logrus.FieldLogger, id, html string) {
	name := id
	if name == "" {
		name = time.Now().UTC().Format("20060102T150405Z")
	}
	path := filepath.Join(p.opts.FailedHTMLDir, fmt.Sprintf("failed_parse_%s.html", store.SanitizeFilename(name)))
	if err := os.MkdirAll(p.opts.FailedHTMLDir, 0700); err != nil {
		log.WithError(err).Warn("Could not create failed-HTML dir")
		return
	}
	if err := os.WriteFile(path, []byte(html), 0600); err != nil {
		log.WithError(err).Warn("Could not save failed HTML")
		return
	}
	log.WithField("path", path).Info("Saved failed HTML")
}

// reconcile swaps the reply matching requestedID into the main post slot.
// The in-place swap keeps reply keys unique: the old main post takes the
// matched reply's position.
func reconcile(t *types.Thread, requestedID string) bool {
	if requestedID == "" || t.MainPost.PostID == requestedID {
		return false
	}
	for i := range t.Replies {
		if t.Replies[i].PostID == requestedID {
			t.MainPost, t.Replies[i] = t.Replies[i], t.MainPost
			return true
		}
	}
	return false
}
