package rag

import "strings"

// ChunkText splits text into overlapping windows of at most maxWords words,
// each window starting maxWords-overlap words after the previous one.
// Whitespace-only text yields no chunks; text that already fits is returned
// unchanged as a single chunk.
func ChunkText(text string, maxWords, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 || len(words) <= maxWords {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	step := maxWords - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
