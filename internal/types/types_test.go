package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostKey(t *testing.T) {
	assert.Equal(t, "123", (&Post{PostID: "123", Permalink: "https://n.example/u/status/123"}).Key())
	assert.Equal(t, "https://n.example/u/status/123", (&Post{Permalink: "https://n.example/u/status/123"}).Key())
	assert.Equal(t, "", (&Post{}).Key())
}

func TestCanonicalID(t *testing.T) {
	t.Run("main post id wins", func(t *testing.T) {
		thread := &Thread{
			MainPost: Post{PostID: "100"},
			Replies:  []Post{{PostID: "101"}},
		}
		assert.Equal(t, "100", thread.CanonicalID())
	})

	t.Run("falls back to first reply with id", func(t *testing.T) {
		thread := &Thread{
			Replies: []Post{{}, {PostID: "101"}, {PostID: "102"}},
		}
		assert.Equal(t, "101", thread.CanonicalID())
	})

	t.Run("empty when nothing has an id", func(t *testing.T) {
		assert.Equal(t, "", (&Thread{Replies: []Post{{}}}).CanonicalID())
	})
}

func TestAllImagesOrder(t *testing.T) {
	thread := &Thread{
		MainPost: Post{Images: []Image{{URL: "m1"}, {URL: "m2"}}},
		Replies: []Post{
			{Images: []Image{{URL: "r1"}}},
			{},
			{Images: []Image{{URL: "r2"}}},
		},
	}

	imgs := thread.AllImages()
	urls := make([]string, len(imgs))
	for i, img := range imgs {
		urls[i] = img.URL
	}
	assert.Equal(t, []string{"m1", "m2", "r1", "r2"}, urls)

	// Pointers reach the originals, so descriptions can be set in place.
	imgs[0].Description = "described"
	assert.Equal(t, "described", thread.MainPost.Images[0].Description)
}

func TestCombinedText(t *testing.T) {
	thread := &Thread{
		MainPost: Post{AuthorHandle: "alice", Text: "the main post"},
		Replies: []Post{
			{AuthorHandle: "bob", Text: "first reply"},
			{AuthorHandle: "bob", Text: "first reply"}, // consecutive dup, skipped
			{AuthorHandle: "carol", Text: "first reply"},
		},
	}

	out := thread.CombinedText()
	assert.Contains(t, out, "Main Post (@alice):\nthe main post")
	assert.Contains(t, out, "--- Reply 1 (@bob) ---")
	assert.NotContains(t, out, "--- Reply 2")
	assert.Contains(t, out, "--- Reply 3 (@carol) ---")
}

func TestHasText(t *testing.T) {
	assert.False(t, (&Thread{MainPost: Post{Text: "  "}}).HasText())
	assert.True(t, (&Thread{MainPost: Post{Text: "hi"}}).HasText())
	assert.True(t, (&Thread{Replies: []Post{{Text: "only a reply"}}}).HasText())
}
