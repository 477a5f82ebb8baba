package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"threadmirror/internal/types"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename makes an id safe to use as a file name component.
func SanitizeFilename(id string) string {
	out := unsafeFilenameChars.ReplaceAllString(id, "_")
	if out == "" {
		out = "unknown"
	}
	return out
}

// snapshot is the denormalized JSON record written alongside the database
// row. It is self-contained: everything needed to rebuild the thread.
type snapshot struct {
	PostID      string       `json:"post_id"`
	OriginalURL string       `json:"original_url"`
	ScrapeDate  time.Time    `json:"scrape_date"`
	AIReport    string       `json:"ai_report,omitempty"`
	Thread      types.Thread `json:"thread"`
}

func (s *Store) snapshotPath(id string) string {
	return filepath.Join(s.snapshotDir, fmt.Sprintf("post_%s.json", SanitizeFilename(id)))
}

// writeSnapshot writes the per-post JSON file. The write goes through a
// temp file and rename so a crash never leaves a truncated snapshot.
func (s *Store) writeSnapshot(thread *types.Thread, id, originalURL, aiReport string, scrapeDate time.Time) error {
	data, err := json.MarshalIndent(snapshot{
		PostID:      id,
		OriginalURL: originalURL,
		ScrapeDate:  scrapeDate,
		AIReport:    aiReport,
		Thread:      *thread,
	}, "", "  ")
	if err != nil {
		return err
	}

	path := s.snapshotPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot file back. Used for offline inspection and
// round-trip checks.
func (s *Store) ReadSnapshot(id string) (*types.Thread, error) {
	data, err := os.ReadFile(s.snapshotPath(id))
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap.Thread, nil
}
