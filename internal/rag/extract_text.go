package rag

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// extractPlain returns the file as UTF-8 text. Content that is not already
// valid UTF-8 is decoded using a BOM when present, otherwise the detected
// charset.
func extractPlain(raw []byte) (string, error) {
	return decodeText(raw, "text/plain")
}

func decodeText(raw []byte, contentType string) (string, error) {
	if utf8.Valid(raw) && !hasBOM(raw) {
		return string(raw), nil
	}
	enc, _, _ := charset.DetermineEncoding(raw, contentType)
	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

func hasBOM(raw []byte) bool {
	return len(raw) >= 2 && ((raw[0] == 0xFE && raw[1] == 0xFF) || (raw[0] == 0xFF && raw[1] == 0xFE)) ||
		len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF
}
