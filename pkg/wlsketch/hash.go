package wlsketch

import "strings"

// Hash is the label hasher: djb2-style multiply-add over the raw bytes.
// The choice is fixed; sketches are only comparable across runs that use the
// same hasher.
func Hash(data []byte) uint64 {
	var h uint64 = 5381
	for _, b := range data {
		h = h*33 + uint64(b)
	}
	return h
}

// HashString hashes a relabeling string.
func HashString(s string) uint64 {
	return Hash([]byte(s))
}

// Chunkify splits a relabeling string on whitespace into tokens, groups
// consecutive runs of chunkSize tokens, and hashes each group rejoined with
// single spaces. The last chunk may be short; if chunkSize covers all tokens
// the result is a single element.
func Chunkify(data []byte, chunkSize int) []uint64 {
	tokens := strings.Fields(string(data))
	if len(tokens) == 0 {
		return nil
	}
	chunks := make([]uint64, 0, (len(tokens)+chunkSize-1)/chunkSize)
	for start := 0; start < len(tokens); start += chunkSize {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, HashString(strings.Join(tokens[start:end], " ")))
	}
	return chunks
}
