package rag

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()

	text, err := ExtractText(writeFile(t, dir, "fees.txt", []byte("Tuition is 45,000 AED.\n")), 0)
	require.NoError(t, err)
	assert.Equal(t, "Tuition is 45,000 AED.\n", text)

	text, err = ExtractText(writeFile(t, dir, "ar.md", []byte("# القبول\nالرسوم الدراسية")), 0)
	require.NoError(t, err)
	assert.Equal(t, "# القبول\nالرسوم الدراسية", text)
}

func TestExtractPlainTextDecodesLegacyCharsets(t *testing.T) {
	dir := t.TempDir()

	text, err := ExtractText(writeFile(t, dir, "latin.txt", []byte("caf\xe9 cr\xe8me")), 0)
	require.NoError(t, err)
	assert.Equal(t, "café crème", text)

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("héllo world"))
	require.NoError(t, err)
	text, err = ExtractText(writeFile(t, dir, "wide.txt", utf16), 0)
	require.NoError(t, err)
	assert.Equal(t, "héllo world", text)
}

func TestExtractRejections(t *testing.T) {
	dir := t.TempDir()

	_, err := ExtractText(writeFile(t, dir, "brochure.pdf", []byte("%PDF-1.4\n")), 0)
	assert.ErrorIs(t, err, ErrNeedsConversion)

	_, err = ExtractText(writeFile(t, dir, "renamed.txt", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")), 0)
	assert.ErrorIs(t, err, ErrNeedsConversion)

	_, err = ExtractText(writeFile(t, dir, "blob.txt", []byte{0x00, 0x01, 0x02, 0x03, 0x10, 0x11, 0x00, 0x05}), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ExtractText(writeFile(t, dir, "slides.pptx", []byte("x")), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ExtractText(writeFile(t, dir, "big.txt", bytes.Repeat([]byte("a "), 100)), 10)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = ExtractText(writeFile(t, dir, "blank.txt", []byte(" \n\t")), 0)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = ExtractText(filepath.Join(dir, "absent.txt"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractHTMLSkipsHiddenElements(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>ATS</title><style>body{color:red}</style>
<script>var tracking = 1;</script></head><body><h1>Admissions</h1>
<p>Apply  by <b>June</b>.</p><noscript>enable javascript</noscript><template><p>hidden</p></template></body></html>`

	text, err := ExtractText(writeFile(t, t.TempDir(), "index.html", []byte(page)), 0)
	require.NoError(t, err)
	assert.Equal(t, "ATS\nAdmissions\nApply  by\nJune\n.", text)
}

func TestExtractXLSX(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "Program"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "Fee"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "Diploma"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", 45000))
	require.NoError(t, book.SetCellValue("Sheet1", "A4", " "))
	require.NoError(t, book.SetCellValue("Sheet1", "A5", "Note"))
	_, err := book.NewSheet("Campuses")
	require.NoError(t, err)
	require.NoError(t, book.SetCellValue("Campuses", "A1", "Abu Dhabi"))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, book.Close())

	text, err := ExtractText(writeFile(t, t.TempDir(), "fees.xlsx", buf.Bytes()), 0)
	require.NoError(t, err)
	assert.Equal(t, "Program | Fee\nDiploma | 45000\nNote\nAbu Dhabi", text)
}

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Admissions open</w:t></w:r><w:r><w:tab/><w:t>in June</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">   </w:t></w:r></w:p>
<w:tbl><w:tr>
<w:tc><w:p><w:r><w:t>Diploma</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>45,000 AED</w:t></w:r></w:p><w:p><w:r><w:t>per year</w:t></w:r></w:p></w:tc>
<w:tc><w:p></w:p></w:tc>
</w:tr></w:tbl>
<w:p><w:r><w:t>Contact</w:t><w:br/><w:t>us</w:t></w:r></w:p>
</w:body></w:document>`

func docx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	text, err := ExtractText(writeFile(t, t.TempDir(), "guide.docx", docx(t, testDocumentXML)), 0)
	require.NoError(t, err)
	assert.Equal(t, "Admissions open\tin June\n\nContact\nus\n\nDiploma\n\n45,000 AED\nper year", text)
}

func TestExtractDOCXCorrupt(t *testing.T) {
	_, err := ExtractText(writeFile(t, t.TempDir(), "broken.docx", []byte("not a zip archive")), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension(".DOCX"))
	assert.True(t, SupportedExtension(".htm"))
	assert.False(t, SupportedExtension(".pdf"))
}
