package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX returns the body paragraphs followed by the cells of top-level
// tables, each trimmed, blanks dropped, separated by blank lines.
func extractDOCX(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("open docx: word/document.xml not found")
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer rc.Close()

	paras, cells, err := walkDocument(rc)
	if err != nil {
		return "", fmt.Errorf("parse docx body: %w", err)
	}
	var out []string
	for _, s := range append(paras, cells...) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n"), nil
}

func walkDocument(r io.Reader) (paras, cells []string, err error) {
	dec := xml.NewDecoder(r)
	var (
		tableDepth int
		inText     bool
		para       strings.Builder
		cellParas  []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return paras, cells, nil
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tc":
				if tableDepth == 1 {
					cellParas = cellParas[:0]
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "tc":
				if tableDepth == 1 {
					cells = append(cells, strings.Join(cellParas, "\n"))
				}
			case "p":
				switch tableDepth {
				case 0:
					paras = append(paras, para.String())
				case 1:
					cellParas = append(cellParas, para.String())
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
}
