package scraper

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"threadmirror/internal/browser"
)

const (
	pageLoadTimeout = 35 * time.Second
	readyTimeout    = 7 * time.Second
	settleDelay     = 3 * time.Second
)

// ChromeLoader loads pages through a headless Chrome instance. Each Load
// runs in a fresh browser context so cookies and cache never leak between
// instances.
type ChromeLoader struct {
	headless bool
	log      logrus.FieldLogger
}

func NewChromeLoader(headless bool, log logrus.FieldLogger) *ChromeLoader {
	return &ChromeLoader{headless: headless, log: log.WithField("component", "browser")}
}

// Load navigates to url and returns the main document's HTTP status along
// with the rendered HTML. A missing ready selector is tolerated; whatever
// HTML rendered is still returned.
func (l *ChromeLoader) Load(ctx context.Context, url string) (*PageResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, browser.Options(l.headless)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	loadCtx, cancelLoad := context.WithTimeout(browserCtx, pageLoadTimeout)
	defer cancelLoad()

	var status int64
	chromedp.ListenTarget(loadCtx, func(ev interface{}) {
		if res, ok := ev.(*network.EventResponseReceived); ok {
			if res.Type == network.ResourceTypeDocument && status == 0 {
				status = res.Response.Status
			}
		}
	})

	var html string
	err := chromedp.Run(loadCtx,
		network.Enable(),
		chromedp.Navigate(url),
		l.waitReady(),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, err
	}
	return &PageResult{Status: int(status), HTML: html}, nil
}

// waitReady waits for the page container to appear but gives up quietly
// after readyTimeout. Error pages often never render it, and we want their
// HTML anyway so the parser can report the marker it finds.
func (l *ChromeLoader) waitReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		defer cancel()
		if err := chromedp.WaitReady(SelectorPageReady, chromedp.ByQuery).Do(waitCtx); err != nil {
			l.log.WithError(err).Debug("Page ready selector did not appear")
		}
		return nil
	})
}
