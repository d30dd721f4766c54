package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const pdfMIME = "application/pdf"

// extractor turns the raw bytes of one file into plain text.
type extractor func(raw []byte) (string, error)

var extractors = map[string]extractor{
	".txt":  extractPlain,
	".md":   extractPlain,
	".xlsx": extractXLSX,
	".docx": extractDOCX,
	".html": extractHTML,
	".htm":  extractHTML,
}

// SupportedExtension reports whether ext (with leading dot) has an extractor.
func SupportedExtension(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// ExtractText reads path and returns its text using the extractor for the
// file's extension. PDFs, by name or by content, are rejected with
// ErrNeedsConversion. maxBytes <= 0 disables the size check.
func ExtractText(path string, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return "", ErrNeedsConversion
	}
	extract, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, info.Size(), maxBytes)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	kind := mimetype.Detect(raw)
	if kind.Is(pdfMIME) {
		return "", ErrNeedsConversion
	}
	if textual(ext) && !isText(kind) {
		return "", fmt.Errorf("%w: %s content in a %s file", ErrUnsupportedFormat, kind.String(), ext)
	}

	text, err := extract(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func textual(ext string) bool {
	switch ext {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func isText(kind *mimetype.MIME) bool {
	for m := kind; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
