package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"threadmirror/internal/types"
)

// ErrDuplicate means the thread's canonical id has already been persisted.
var ErrDuplicate = errors.New("post already saved")

// DatabaseError means a durable write or read failed.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Store persists threads to SQLite plus a JSON snapshot per post. It keeps
// the set of already-saved ids in memory, warmed from the database at open,
// so duplicate checks never touch disk.
type Store struct {
	db          *sql.DB
	snapshotDir string
	log         logrus.FieldLogger

	mu   sync.Mutex
	seen map[string]struct{}
}

// Open creates the Store, runs migrations, and warms the seen set.
func Open(dbPath, snapshotDir string, log logrus.FieldLogger) (*Store, error) {
	for _, dir := range []string{filepath.Dir(dbPath), snapshotDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:          db,
		snapshotDir: snapshotDir,
		log:         log.WithField("component", "store"),
		seen:        make(map[string]struct{}),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.warmSeen(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		author TEXT,
		handle TEXT,
		text TEXT,
		date TEXT,
		permalink TEXT UNIQUE,
		images_json TEXT,
		original_url TEXT,
		scrape_date DATETIME NOT NULL,
		ai_report TEXT,
		likes INTEGER,
		reposts INTEGER,
		reply_count INTEGER,
		topic_tags_json TEXT,
		factual_context TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS replies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id TEXT NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
		status_id TEXT UNIQUE,
		author TEXT,
		handle TEXT,
		text TEXT,
		date TEXT,
		permalink TEXT UNIQUE,
		images_json TEXT
	);

	CREATE TABLE IF NOT EXISTS image_cache (
		url_hash TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS author_notes (
		handle TEXT PRIMARY KEY,
		note TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_posts_scrape_date ON posts(scrape_date);
	CREATE INDEX IF NOT EXISTS idx_replies_post_id ON replies(post_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// warmSeen loads every persisted id into the in-memory seen set.
func (s *Store) warmSeen() error {
	rows, err := s.db.Query(`SELECT post_id FROM posts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.seen[id] = struct{}{}
	}
	return rows.Err()
}

// Seen reports whether the id has already been persisted.
func (s *Store) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

func (s *Store) markSeen(id string) {
	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
}

// Save persists the thread under its canonical id, along with the report
// text and the URL the user originally asked for. The id enters the seen
// set only after both the database row and the JSON snapshot are on disk;
// a snapshot failure rolls the row back out.
func (s *Store) Save(thread *types.Thread, originalURL, aiReport string) error {
	if err := ValidateThread(thread); err != nil {
		return err
	}
	id := thread.CanonicalID()
	if s.Seen(id) {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}

	scrapeDate := time.Now().UTC()
	if err := s.insert(thread, id, originalURL, aiReport, scrapeDate); err != nil {
		return &DatabaseError{Op: "insert", Err: err}
	}

	if err := s.writeSnapshot(thread, id, originalURL, aiReport, scrapeDate); err != nil {
		// Keep the database and the snapshot dir in step.
		if _, derr := s.db.Exec(`DELETE FROM posts WHERE post_id = ?`, id); derr != nil {
			s.log.WithError(derr).Error("Failed to roll back row after snapshot failure")
		}
		return &DatabaseError{Op: "snapshot", Err: err}
	}

	s.markSeen(id)
	s.log.WithFields(logrus.Fields{
		"post_id": id,
		"replies": len(thread.Replies),
	}).Info("Saved thread")
	return nil
}

func (s *Store) insert(thread *types.Thread, id, originalURL, aiReport string, scrapeDate time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	main := &thread.MainPost
	imagesJSON, _ := json.Marshal(main.Images)
	tagsJSON, _ := json.Marshal(main.TopicTags)

	_, err = tx.Exec(`
		INSERT INTO posts (post_id, author, handle, text, date, permalink,
			images_json, original_url, scrape_date, ai_report,
			likes, reposts, reply_count, topic_tags_json, factual_context, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, main.AuthorName, main.AuthorHandle, main.Text, main.Date, main.Permalink,
		string(imagesJSON), originalURL, scrapeDate, aiReport,
		main.Likes, main.Reposts, main.ReplyCount, string(tagsJSON),
		thread.FactualContext, thread.Source)
	if err != nil {
		return err
	}

	for _, reply := range thread.Replies {
		replyImages, _ := json.Marshal(reply.Images)
		var statusID any
		if reply.PostID != "" {
			statusID = reply.PostID
		}
		_, err = tx.Exec(`
			INSERT INTO replies (post_id, status_id, author, handle, text, date, permalink, images_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, statusID, reply.AuthorName, reply.AuthorHandle, reply.Text,
			reply.Date, reply.Permalink, string(replyImages))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Summary is one row of the saved-posts listing.
type Summary struct {
	PostID       string
	AuthorHandle string
	Text         string
	Date         string
	ScrapeDate   time.Time
	ReplyCount   int
}

// List returns saved posts, newest scrape first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Summary, error) {
	query := `
		SELECT p.post_id, p.handle, p.text, p.date, p.scrape_date,
			(SELECT COUNT(*) FROM replies r WHERE r.post_id = p.post_id)
		FROM posts p
		ORDER BY p.scrape_date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &DatabaseError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.PostID, &sum.AuthorHandle, &sum.Text,
			&sum.Date, &sum.ScrapeDate, &sum.ReplyCount); err != nil {
			return nil, &DatabaseError{Op: "list", Err: err}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetThread reloads a saved thread. The second return is the originally
// requested URL; sql.ErrNoRows surfaces when the id is unknown.
func (s *Store) GetThread(id string) (*types.Thread, string, error) {
	var (
		thread      types.Thread
		originalURL string
		imagesJSON  string
		tagsJSON    string
	)
	main := &thread.MainPost
	err := s.db.QueryRow(`
		SELECT post_id, author, handle, text, date, permalink, images_json,
			original_url, likes, reposts, reply_count, topic_tags_json,
			factual_context, source
		FROM posts WHERE post_id = ?
	`, id).Scan(&main.PostID, &main.AuthorName, &main.AuthorHandle, &main.Text,
		&main.Date, &main.Permalink, &imagesJSON, &originalURL,
		&main.Likes, &main.Reposts, &main.ReplyCount, &tagsJSON,
		&thread.FactualContext, &thread.Source)
	if err != nil {
		return nil, "", err
	}
	_ = json.Unmarshal([]byte(imagesJSON), &main.Images)
	_ = json.Unmarshal([]byte(tagsJSON), &main.TopicTags)

	rows, err := s.db.Query(`
		SELECT status_id, author, handle, text, date, permalink, images_json
		FROM replies WHERE post_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, "", &DatabaseError{Op: "load replies", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reply    types.Post
			statusID sql.NullString
			imgs     string
		)
		if err := rows.Scan(&statusID, &reply.AuthorName, &reply.AuthorHandle,
			&reply.Text, &reply.Date, &reply.Permalink, &imgs); err != nil {
			return nil, "", &DatabaseError{Op: "load replies", Err: err}
		}
		reply.PostID = statusID.String
		_ = json.Unmarshal([]byte(imgs), &reply.Images)
		thread.Replies = append(thread.Replies, reply)
	}
	return &thread, originalURL, rows.Err()
}

// GetReport returns the stored report text for a saved post.
func (s *Store) GetReport(id string) (string, error) {
	var report sql.NullString
	err := s.db.QueryRow(`SELECT ai_report FROM posts WHERE post_id = ?`, id).Scan(&report)
	if err != nil {
		return "", err
	}
	return report.String, nil
}

// Delete removes a saved post, its replies, its snapshot file, and its seen
// entry.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM posts WHERE post_id = ?`, id)
	if err != nil {
		return &DatabaseError{Op: "delete", Err: err}
	}
	if _, err := s.db.Exec(`DELETE FROM replies WHERE post_id = ?`, id); err != nil {
		return &DatabaseError{Op: "delete", Err: err}
	}

	if err := os.Remove(s.snapshotPath(id)); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).Warn("Failed to remove snapshot file")
	}

	s.mu.Lock()
	delete(s.seen, id)
	s.mu.Unlock()

	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetImageDescription implements report.DescriptionCache.
func (s *Store) GetImageDescription(urlHash string) (string, bool, error) {
	var desc string
	err := s.db.QueryRow(`SELECT description FROM image_cache WHERE url_hash = ?`, urlHash).Scan(&desc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &DatabaseError{Op: "image cache read", Err: err}
	}
	return desc, true, nil
}

// PutImageDescription implements report.DescriptionCache.
func (s *Store) PutImageDescription(urlHash, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO image_cache (url_hash, description) VALUES (?, ?)
		ON CONFLICT(url_hash) DO UPDATE SET description = excluded.description
	`, urlHash, description)
	if err != nil {
		return &DatabaseError{Op: "image cache write", Err: err}
	}
	return nil
}

// SetAuthorNote upserts a free-form note about an author.
func (s *Store) SetAuthorNote(handle, note string) error {
	_, err := s.db.Exec(`
		INSERT INTO author_notes (handle, note, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(handle) DO UPDATE SET note = excluded.note, updated_at = CURRENT_TIMESTAMP
	`, handle, note)
	if err != nil {
		return &DatabaseError{Op: "author note write", Err: err}
	}
	return nil
}

// GetAuthorNote returns the stored note for a handle, or "" when none.
func (s *Store) GetAuthorNote(handle string) (string, error) {
	var note string
	err := s.db.QueryRow(`SELECT note FROM author_notes WHERE handle = ?`, handle).Scan(&note)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &DatabaseError{Op: "author note read", Err: err}
	}
	return note, nil
}
