package rag

import (
	"strings"

	"github.com/mwiater/manara/internal/util"
)

const (
	passageSeparator = "\n---\n"
	truncationMarker = "… (truncated)"
)

// FormatContext truncates each passage to maxWords words and joins them into
// the context block given to the language model.
func FormatContext(passages []Passage, maxWords int) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, util.TruncateWords(p.Text, maxWords, truncationMarker))
	}
	return strings.Join(parts, passageSeparator)
}
