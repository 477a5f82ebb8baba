package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		instance string
		want     string
	}{
		{
			name:     "x.com to mirror",
			raw:      "https://x.com/someuser/status/1234567890",
			instance: "https://nitter.net",
			want:     "https://nitter.net/someuser/status/1234567890",
		},
		{
			name:     "twitter.com with www",
			raw:      "https://www.twitter.com/someuser/status/42",
			instance: "https://nitter.net",
			want:     "https://nitter.net/someuser/status/42",
		},
		{
			name:     "already on a mirror",
			raw:      "https://nitter.example.org/someuser/status/42",
			instance: "https://nitter.net",
			want:     "https://nitter.net/someuser/status/42",
		},
		{
			name:     "missing scheme",
			raw:      "x.com/someuser/status/42",
			instance: "https://nitter.net",
			want:     "https://nitter.net/someuser/status/42",
		},
		{
			name:     "trailing query and fragment dropped",
			raw:      "https://x.com/someuser/status/42?s=20#m",
			instance: "https://nitter.net",
			want:     "https://nitter.net/someuser/status/42",
		},
		{
			name:     "instance trailing slash trimmed",
			raw:      "https://x.com/someuser/status/42",
			instance: "https://nitter.net/",
			want:     "https://nitter.net/someuser/status/42",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw, tc.instance)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRejectsUnknownHosts(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://example.com/someuser/status/42",
		"https://x.com/someuser",
		"https://x.com/someuser/status/notanumber",
		"not a url at all",
	} {
		_, err := Normalize(raw, "https://nitter.net")
		assert.ErrorIs(t, err, ErrInvalidURL, "input %q", raw)
	}
}

func TestExtractStatusID(t *testing.T) {
	assert.Equal(t, "1234567890", ExtractStatusID("https://nitter.net/u/status/1234567890#m"))
	assert.Equal(t, "42", ExtractStatusID("/u/status/42"))
	assert.Equal(t, "", ExtractStatusID("https://nitter.net/u"))
}
