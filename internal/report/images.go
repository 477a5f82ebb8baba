package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

const (
	maxImageBytes   = 10 * 1024 * 1024
	downloadTimeout = 30 * time.Second
)

// videoThumbKeywords mark URLs that are video poster frames, not images
// worth describing.
var videoThumbKeywords = []string{
	"video_thumb",
	"ext_tw_video_thumb",
	"amplify_video_thumb",
	"tweet_video_thumb",
}

// HashURL returns the cache key for an image URL.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// RewriteMirrorImageURL unwraps a mirror's image proxy path into the direct
// media URL. Mirrors serve images as /pic/<url-encoded original path>;
// fetching through the proxy couples image downloads to mirror uptime, so we
// go to the origin instead. URLs without a proxy path pass through unchanged.
func RewriteMirrorImageURL(url string) string {
	idx := strings.Index(url, "/pic/")
	if idx < 0 {
		return url
	}
	decoded, err := neturl.PathUnescape(url[idx+len("/pic/"):])
	if err != nil {
		return url
	}
	switch {
	case strings.HasPrefix(decoded, "http://"), strings.HasPrefix(decoded, "https://"):
		return decoded
	case strings.HasPrefix(decoded, "media/"), strings.HasPrefix(decoded, "orig/media/"):
		return "https://pbs.twimg.com/" + strings.TrimPrefix(decoded, "orig/")
	}
	return url
}

func isVideoThumbnail(url string) bool {
	for _, kw := range videoThumbKeywords {
		if strings.Contains(url, kw) {
			return true
		}
	}
	return false
}

// imageFetcher downloads image bytes with a hard size ceiling.
type imageFetcher struct {
	client *http.Client
}

func newImageFetcher() *imageFetcher {
	return &imageFetcher{
		client: &http.Client{Timeout: downloadTimeout},
	}
}

// fetch downloads url and returns a payload ready to attach to a request.
// Bodies over the size ceiling are rejected.
func (f *imageFetcher) fetch(ctx context.Context, url string) (*ImagePayload, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}

	return &ImagePayload{URL: url, MIME: mime, Data: data}, nil
}
