package wlsketch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	assert.Equal(t, Hash([]byte("2 7 1")), Hash([]byte("2 7 1")))
	assert.Equal(t, HashString("2 7 1"), Hash([]byte("2 7 1")))
	assert.NotEqual(t, HashString("2 7 1"), HashString("2 7 2"))
	assert.NotEqual(t, HashString("1"), HashString("2"))
}

func TestHashEmptyInput(t *testing.T) {
	// djb2 seed value for the empty string.
	assert.Equal(t, uint64(5381), Hash(nil))
	assert.Equal(t, uint64(5381), Hash([]byte{}))
}

func TestChunkifySplitsOnTokenBoundaries(t *testing.T) {
	chunks := Chunkify([]byte("a b c d e"), 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, HashString("a b"), chunks[0])
	assert.Equal(t, HashString("c d"), chunks[1])
	assert.Equal(t, HashString("e"), chunks[2])
}

func TestChunkifySingleChunkWhenSizeCoversTokens(t *testing.T) {
	chunks := Chunkify([]byte("10 20 30"), 3)
	require.Len(t, chunks, 1)
	assert.Equal(t, HashString("10 20 30"), chunks[0])

	chunks = Chunkify([]byte("10 20 30"), 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, HashString("10 20 30"), chunks[0])
}

func TestChunkifyEmpty(t *testing.T) {
	assert.Nil(t, Chunkify(nil, 2))
	assert.Nil(t, Chunkify([]byte("   "), 2))
}

func TestChunkifyRoundTripsTokenization(t *testing.T) {
	// Chunk token groups, rejoined with single spaces, must reproduce the
	// tokenization of the input regardless of chunk size.
	input := "5381 17 93 42 8 1024 7"
	tokens := strings.Fields(input)
	for chunkSize := 1; chunkSize <= len(tokens)+1; chunkSize++ {
		var rebuilt []string
		for start := 0; start < len(tokens); start += chunkSize {
			end := start + chunkSize
			if end > len(tokens) {
				end = len(tokens)
			}
			rebuilt = append(rebuilt, strings.Join(tokens[start:end], " "))
		}
		assert.Equal(t, tokens, strings.Fields(strings.Join(rebuilt, " ")), "chunk size %d", chunkSize)

		want := make([]uint64, 0, len(rebuilt))
		for _, c := range rebuilt {
			want = append(want, HashString(c))
		}
		assert.Equal(t, want, Chunkify([]byte(input), chunkSize), "chunk size %d", chunkSize)
	}
}
