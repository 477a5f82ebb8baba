package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when input does not look like a thread URL on a
// known source domain or mirror host.
var ErrInvalidURL = errors.New("invalid thread URL")

var (
	threadURLPattern = regexp.MustCompile(
		`(?i)^(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com|nitter\.[a-z0-9.-]+)/([^/\s]+)/status/(\d+)`)
	statusIDPattern = regexp.MustCompile(`status/(\d+)`)
)

// Normalize rewrites a user-supplied thread URL onto the given mirror
// instance. Pure function: no I/O, no state.
func Normalize(rawURL, instance string) (string, error) {
	m := threadURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return fmt.Sprintf("%s/%s/status/%s", strings.TrimRight(instance, "/"), m[1], m[2]), nil
}

// ExtractStatusID pulls the numeric status id out of any URL containing a
// /status/ path segment. Returns "" when there is none.
func ExtractStatusID(url string) string {
	m := statusIDPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// DerivePostID derives a post's id from its permalink. Returns "" when the
// permalink does not carry one; the caller decides whether to backfill.
func DerivePostID(permalink string) string {
	return ExtractStatusID(permalink)
}
