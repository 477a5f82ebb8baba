package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadmirror/internal/report"
	"threadmirror/internal/scraper"
	"threadmirror/internal/store"
	"threadmirror/internal/types"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeFetcher struct {
	html     string
	instance string
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, string, error) {
	f.calls++
	return f.html, f.instance, f.err
}

type fakeExtractor struct {
	thread *types.Thread
	err    error
}

func (f *fakeExtractor) Parse(string, string) (*types.Thread, error) {
	if f.err != nil {
		return nil, f.err
	}
	// Copy so tests can compare against the original.
	t := *f.thread
	t.Replies = append([]types.Post(nil), f.thread.Replies...)
	return &t, nil
}

type fakeReporter struct {
	out       string
	err       error
	calls     int
	described int
}

func (f *fakeReporter) Generate(context.Context, *types.Thread, string) (string, error) {
	f.calls++
	return f.out, f.err
}

func (f *fakeReporter) DescribeImages(context.Context, *types.Thread) error {
	f.described++
	return nil
}

type fakeStore struct {
	seen      map[string]bool
	seenLater map[string]bool // becomes seen after the first Seen call
	notes     map[string]string
	saveErr   error

	savedThread *types.Thread
	savedURL    string
	savedReport string
	saves       int
	seenCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}, notes: map[string]string{}}
}

func (f *fakeStore) Seen(id string) bool {
	f.seenCalls++
	if f.seen[id] {
		return true
	}
	if f.seenLater[id] {
		f.seen[id] = true // visible on the next call
	}
	return false
}

func (f *fakeStore) Save(thread *types.Thread, originalURL, aiReport string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.savedThread = thread
	f.savedURL = originalURL
	f.savedReport = aiReport
	return nil
}

func (f *fakeStore) GetAuthorNote(handle string) (string, error) {
	return f.notes[handle], nil
}

func sampleThread() *types.Thread {
	return &types.Thread{
		MainPost: types.Post{PostID: "111", AuthorHandle: "alice", Text: "main"},
		Replies: []types.Post{
			{PostID: "112", AuthorHandle: "bob", Text: "reply"},
		},
	}
}

func newPipeline(f *fakeFetcher, e *fakeExtractor, r *fakeReporter, s *fakeStore, opts Options) *Pipeline {
	return New(f, e, r, s, opts, testLogger())
}

func TestRunHappyPath(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html>thread</html>", instance: "https://nitter.net"}
	reporter := &fakeReporter{out: "the report"}
	st := newFakeStore()
	p := newPipeline(fetcher, &fakeExtractor{thread: sampleThread()}, reporter, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)

	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, "111", res.PostID)
	assert.Equal(t, "the report", res.Report)

	assert.Equal(t, 1, st.saves)
	assert.Equal(t, "https://x.com/alice/status/111", st.savedURL)
	assert.Equal(t, "the report", st.savedReport)
	assert.Equal(t, "https://nitter.net", st.savedThread.Source)
}

func TestRunSkipsSeenWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{}
	reporter := &fakeReporter{}
	st := newFakeStore()
	st.seen["111"] = true
	p := newPipeline(fetcher, &fakeExtractor{thread: sampleThread()}, reporter, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, res.State)
	assert.Equal(t, "111", res.PostID)
	assert.Zero(t, fetcher.calls)
	assert.Zero(t, reporter.calls)
	assert.Zero(t, st.saves)
}

func TestRunReconciliation(t *testing.T) {
	// The user pasted a reply permalink: the page's main element is 222 but
	// a reply element carries the requested id 111.
	thread := &types.Thread{
		MainPost: types.Post{PostID: "222", AuthorHandle: "alice", Text: "thread root"},
		Replies: []types.Post{
			{PostID: "110", AuthorHandle: "bob", Text: "earlier reply"},
			{PostID: "111", AuthorHandle: "carol", Text: "the requested reply"},
		},
	}
	st := newFakeStore()
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: thread},
		&fakeReporter{out: "report"}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/carol/status/111")
	require.NoError(t, err)
	require.Equal(t, StatePersisted, res.State)

	saved := st.savedThread
	assert.Equal(t, "111", saved.MainPost.PostID)
	assert.Equal(t, "111", res.PostID)

	// The previous main post is now among replies exactly once, and no key
	// repeats.
	var count222 int
	keys := map[string]int{}
	for _, r := range saved.Replies {
		keys[r.PostID]++
		if r.PostID == "222" {
			count222++
		}
	}
	assert.Equal(t, 1, count222)
	for key, n := range keys {
		assert.Equal(t, 1, n, "key %s repeated", key)
	}
}

func TestRunNoMatchingReplyProceedsWithoutSwap(t *testing.T) {
	thread := &types.Thread{
		MainPost: types.Post{PostID: "222", AuthorHandle: "alice", Text: "root"},
		Replies:  []types.Post{{PostID: "333", AuthorHandle: "bob", Text: "reply"}},
	}
	st := newFakeStore()
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: thread},
		&fakeReporter{out: "report"}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, "222", st.savedThread.MainPost.PostID)
	assert.Equal(t, "222", res.PostID)
}

func TestRunBackfillsMissingMainID(t *testing.T) {
	thread := &types.Thread{
		MainPost: types.Post{AuthorHandle: "alice", Text: "root without id"},
	}
	st := newFakeStore()
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: thread},
		&fakeReporter{out: "report"}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, "111", res.PostID)
	assert.Equal(t, "111", st.savedThread.MainPost.PostID)
}

func TestRunFetchFailure(t *testing.T) {
	st := newFakeStore()
	p := newPipeline(
		&fakeFetcher{err: &scraper.FetchError{URL: "https://x.com/alice/status/111"}},
		&fakeExtractor{thread: sampleThread()},
		&fakeReporter{}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, err.Error(), "fetch stage")
	assert.Zero(t, st.saves)
}

func TestRunParseFailureSavesHTML(t *testing.T) {
	dir := t.TempDir()
	st := newFakeStore()
	p := newPipeline(
		&fakeFetcher{html: "<html>broken</html>", instance: "https://nitter.net"},
		&fakeExtractor{err: &scraper.ParseError{Reason: "no elements matched"}},
		&fakeReporter{}, st,
		Options{SaveFailedHTML: true, FailedHTMLDir: dir})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)

	data, err := os.ReadFile(filepath.Join(dir, "failed_parse_111.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>broken</html>", string(data))
}

func TestRunReportFailurePersistsPartialRecord(t *testing.T) {
	st := newFakeStore()
	reporter := &fakeReporter{err: &report.ModelError{Provider: "fake", Op: "generate report", Err: errors.New("boom")}}
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		reporter, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, res.State)
	assert.Contains(t, st.savedReport, "Error: ")
}

func TestRunReportFailureStrict(t *testing.T) {
	st := newFakeStore()
	reporter := &fakeReporter{err: &report.ModelError{Provider: "fake", Op: "generate report", Err: errors.New("boom")}}
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		reporter, st, Options{StrictReport: true})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, st.saves)
}

func TestRunRechecksSeenBeforeWrite(t *testing.T) {
	st := newFakeStore()
	st.seenLater = map[string]bool{"111": true}
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		&fakeReporter{out: "report"}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, res.State)
	assert.Zero(t, st.saves)
	assert.Equal(t, 2, st.seenCalls)
}

func TestRunDuplicateSaveIsSkipped(t *testing.T) {
	st := newFakeStore()
	st.saveErr = store.ErrDuplicate
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		&fakeReporter{out: "report"}, st, Options{})

	res, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, res.State)
}

func TestRunAttachesAuthorNote(t *testing.T) {
	st := newFakeStore()
	st.notes["alice"] = "known parody account"
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		&fakeReporter{out: "report"}, st, Options{})

	_, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, "known parody account", st.savedThread.FactualContext)
}

func TestRunDescribeImagesOption(t *testing.T) {
	st := newFakeStore()
	reporter := &fakeReporter{out: "report"}
	p := newPipeline(
		&fakeFetcher{html: "<html/>", instance: "https://nitter.net"},
		&fakeExtractor{thread: sampleThread()},
		reporter, st, Options{DescribeImages: true})

	_, err := p.Run(context.Background(), "https://x.com/alice/status/111")
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.described)
}
