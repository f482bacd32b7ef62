package tts

import "strings"

// Chunking bounds for long Piper inputs. Piper degrades on very long texts,
// so anything over chunkMaxWords is split into pieces of softLimit..hardLimit
// words, preferring to break after a sentence-final word.
const (
	chunkMaxWords  = 500
	chunkSoftLimit = 450
	chunkHardLimit = 500
)

// SplitText splits text into synthesis chunks. Texts of up to 500 words pass
// through as a single chunk. Longer texts accumulate words until the soft
// limit, then break at the first word ending in '.', '!' or '?', or at the
// hard limit if no sentence boundary shows up. Whitespace is collapsed and
// no chunk is ever empty.
func SplitText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkMaxWords {
		return []string{strings.Join(words, " ")}
	}

	var chunks []string
	var current []string
	for _, word := range words {
		current = append(current, word)
		switch {
		case len(current) >= chunkSoftLimit && endsSentence(word):
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		case len(current) >= chunkHardLimit:
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") ||
		strings.HasSuffix(word, "!") ||
		strings.HasSuffix(word, "?")
}
