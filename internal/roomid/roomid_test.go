package roomid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := Generate()
		require.NoError(t, err)

		words := strings.Split(id, "-")
		require.Len(t, words, wordsPerID)

		parsed, err := Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestPickIsDistinct(t *testing.T) {
	for i := 0; i < 50; i++ {
		idx, err := pick(5, 3)
		require.NoError(t, err)
		assert.Len(t, idx, 3)
		assert.NotEqual(t, idx[0], idx[1])
		assert.NotEqual(t, idx[1], idx[2])
		assert.NotEqual(t, idx[0], idx[2])
	}
}

func TestParse(t *testing.T) {
	cases := map[string]string{
		"abc123":               "abc123",
		"  calm-otter-harbor ": "calm-otter-harbor",
		"https://warpcall.qzz.io/r/calm-otter-harbor": "calm-otter-harbor",
		"https://warpcall.qzz.io/r/abc123/":           "abc123",
		"warpcall.qzz.io/r/abc123":                    "abc123",
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmpty)

	for _, in := range []string{"https://warpcall.qzz.io/", "bad id!", "https://warpcall.qzz.io/r/"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}
}
