package verification

import (
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	token, err := Generate(now)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token.Raw)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, url.QueryEscape(token.Raw), token.Encoded)
	assert.Equal(t, now, token.IssuedAt)

	other, err := Generate(now)
	require.NoError(t, err)
	assert.NotEqual(t, token.Raw, other.Raw)
}

func TestDecode(t *testing.T) {
	raw := "ab+c/d=="
	once := url.QueryEscape(raw)
	twice := url.QueryEscape(once)
	thrice := url.QueryEscape(twice)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value unchanged", raw, raw},
		{"encoded once", once, raw},
		{"encoded twice", twice, raw},
		{"at most two passes", thrice, once},
		{"plus kept literal", "a+b%2Fc", "a+b/c"},
		{"malformed escape left alone", "abc%zz", "abc%zz"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.input))
		})
	}
}

func TestDecode_RoundTripsGeneratedTokens(t *testing.T) {
	for i := 0; i < 50; i++ {
		token, err := Generate(time.Now())
		require.NoError(t, err)

		assert.Equal(t, token.Raw, Decode(token.Encoded))

		// what the query parser hands over after one decode
		parsed, err := url.QueryUnescape(token.Encoded)
		require.NoError(t, err)
		assert.Equal(t, token.Raw, Decode(parsed))
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	assert.False(t, IsExpired(at(time.Hour), DefaultTTL, now))
	assert.False(t, IsExpired(at(24*time.Hour), DefaultTTL, now))
	assert.True(t, IsExpired(at(24*time.Hour+time.Second), DefaultTTL, now))
	assert.True(t, IsExpired(at(25*time.Hour), DefaultTTL, now))
	assert.True(t, IsExpired(nil, DefaultTTL, now))
}
