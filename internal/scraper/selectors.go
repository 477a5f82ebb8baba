package scraper

// Mirror DOM selectors.
// These are isolated here because mirror markups drift between forks.
// Update these when parsing breaks.

// ThreadSelectors are tried together; any element matching one of them is a
// candidate post. Ordered from most to least specific.
var ThreadSelectors = []string{
	".main-thread .timeline-item",
	".conversation .tweet-body",
	".tweet-body",
	".timeline-item",
}

const (
	// Per-post sub-element selectors
	SelectorUsername   = `.username, .handle`
	SelectorFullName   = `.fullname`
	SelectorContent    = `.tweet-content, .content`
	SelectorDateLink   = `.tweet-date a, .tweet-link`
	SelectorAttachment = `.attachments .attachment.image, .attachments .video-container`
	SelectorStillImage = `a.still-image, a.video-thumbnail`
	SelectorStats      = `.tweet-stats .tweet-stat`

	// Content-ready marker waited for after navigation
	SelectorPageReady = `div.container`
)

// ErrorMarkers are substrings that mean the page rendered an error body
// instead of a thread. Their presence fails parsing, not fetching: a mirror
// that answers 200 with one of these gave us its final word.
var ErrorMarkers = []string{
	"Tweet not found",
	"Instance has been rate limited",
	"User not found",
}

// imageIgnoreKeywords excludes avatar and profile media from attachment
// extraction.
var imageIgnoreKeywords = []string{
	"profile_images",
	"avatar",
	"user_media",
}
