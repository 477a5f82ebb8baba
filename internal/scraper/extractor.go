package scraper

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"threadmirror/internal/types"
)

// ParseError means fetched HTML did not yield a usable thread.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse failed: " + e.Reason
}

// Extractor turns rendered mirror HTML into a Thread.
type Extractor struct {
	selectors []string
	log       logrus.FieldLogger
}

// NewExtractor creates an extractor using the default selector list.
func NewExtractor(log logrus.FieldLogger) *Extractor {
	return &Extractor{
		selectors: ThreadSelectors,
		log:       log.WithField("component", "extractor"),
	}
}

// Parse extracts the main post and deduplicated replies from html. baseURL
// is the mirror instance the HTML came from; permalinks and image URLs are
// resolved against it.
func (e *Extractor) Parse(html, baseURL string) (*types.Thread, error) {
	if strings.TrimSpace(html) == "" {
		return nil, &ParseError{Reason: "empty HTML"}
	}
	for _, marker := range ErrorMarkers {
		if strings.Contains(html, marker) {
			return nil, &ParseError{Reason: fmt.Sprintf("page indicates error: %q", marker)}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Reason: "unreadable HTML: " + err.Error()}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	candidates := doc.Find(strings.Join(e.selectors, ", "))
	if candidates.Length() == 0 {
		return nil, &ParseError{Reason: "no elements matched thread selectors"}
	}

	var valid []*goquery.Selection
	candidates.Each(func(_ int, s *goquery.Selection) {
		if s.Find(SelectorUsername).Length() > 0 && s.Find(SelectorContent).Length() > 0 {
			valid = append(valid, s)
		}
	})
	if len(valid) == 0 {
		return nil, &ParseError{Reason: "elements matched but none contained username and content"}
	}

	main := e.extractPost(valid[0], base)
	thread := &types.Thread{MainPost: main}

	// Reply dedup: keyed by post id or permalink, skipping empty keys, the
	// main post's key, and repeats. DOM order is preserved.
	mainKey := main.Key()
	seen := make(map[string]struct{})
	for _, sel := range valid[1:] {
		reply := e.extractPost(sel, base)
		key := reply.Key()
		if key == "" || key == mainKey {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		thread.Replies = append(thread.Replies, reply)
	}

	e.log.WithFields(logrus.Fields{
		"main_post": main.PostID,
		"replies":   len(thread.Replies),
	}).Info("Parsed thread")
	return thread, nil
}

// extractPost pulls one post's fields out of a candidate element.
func (e *Extractor) extractPost(s *goquery.Selection, base *url.URL) types.Post {
	handle := strings.TrimPrefix(firstText(s, SelectorUsername), "@")
	name := firstText(s, SelectorFullName)
	if name == "" {
		name = handle
	}

	text := strings.TrimSpace(s.Find(SelectorContent).First().Text())

	var date, permalink string
	dateLink := s.Find(SelectorDateLink).First()
	if dateLink.Length() > 0 {
		date = strings.TrimSpace(dateLink.AttrOr("title", ""))
		if date == "" {
			date = strings.TrimSpace(dateLink.Text())
		}
		if href, ok := dateLink.Attr("href"); ok {
			permalink = resolveURL(base, href)
		}
	}

	likes, reposts, replyCount := extractStats(s)

	post := types.Post{
		PostID:       DerivePostID(permalink),
		AuthorName:   name,
		AuthorHandle: handle,
		Text:         text,
		Date:         date,
		Permalink:    permalink,
		Images:       e.extractImages(s, base),
		Likes:        likes,
		Reposts:      reposts,
		ReplyCount:   replyCount,
	}
	return post
}

// extractImages gathers attachment URLs, skipping ignore-keyword matches,
// and sorts them so image order is deterministic.
func (e *Extractor) extractImages(s *goquery.Selection, base *url.URL) []types.Image {
	urls := make(map[string]struct{})
	s.Find(SelectorAttachment).Each(func(_ int, cont *goquery.Selection) {
		src, ok := cont.Find(SelectorStillImage).First().Attr("href")
		if !ok {
			src, ok = cont.Find("img").First().Attr("src")
		}
		if !ok || src == "" {
			return
		}
		for _, kw := range imageIgnoreKeywords {
			if strings.Contains(src, kw) {
				return
			}
		}
		urls[resolveURL(base, src)] = struct{}{}
	})
	if len(urls) == 0 {
		return nil
	}

	sorted := make([]string, 0, len(urls))
	for u := range urls {
		sorted = append(sorted, u)
	}
	sort.Strings(sorted)

	images := make([]types.Image, len(sorted))
	for i, u := range sorted {
		images[i] = types.Image{URL: u}
	}
	return images
}

// extractStats reads engagement counters when the markup carries them.
// Missing counters stay zero.
func extractStats(s *goquery.Selection) (likes, reposts, replies int) {
	s.Find(SelectorStats).Each(func(_ int, stat *goquery.Selection) {
		n := parseMetric(stat.Text())
		switch {
		case stat.Find(".icon-heart").Length() > 0:
			likes = n
		case stat.Find(".icon-retweet").Length() > 0:
			reposts = n
		case stat.Find(".icon-comment").Length() > 0:
			replies = n
		}
	})
	return likes, reposts, replies
}

// parseMetric converts abbreviated counter strings like "1.2K", "5.7M", or
// "1,234" to integers.
func parseMetric(s string) int {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
