package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/gedworks/archive-cli/internal/config"
)

func testService() *Service {
	return NewService(config.ExtractConfig{
		MaxChars:      20000,
		PDFMaxPages:   50,
		XLSXMaxSheets: 2,
		XLSXMaxRows:   20,
		PPTXMaxSlides: 5,
	})
}

// writeZip builds a zip file from name → content pairs.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestService_Eligible(t *testing.T) {
	s := testService()

	assert.True(t, s.Eligible("contract.pdf"))
	assert.True(t, s.Eligible("REPORT.DOCX"))
	assert.True(t, s.Eligible("data.xlsx"))
	assert.True(t, s.Eligible("deck.pptx"))
	assert.True(t, s.Eligible("notes.txt"))
	assert.False(t, s.Eligible("movie.mp4"))
	assert.False(t, s.Eligible("archive.tar.gz"))
	assert.False(t, s.Eligible("noext"))
}

func TestService_UnknownExtensionReturnsEmpty(t *testing.T) {
	s := testService()
	text, err := s.Text(filepath.Join(t.TempDir(), "does-not-even-exist.mp4"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestService_UnreadableSource(t *testing.T) {
	s := testService()
	_, err := s.Text(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestService_ParseFailureDegradesToEmpty(t *testing.T) {
	s := testService()
	// Valid path, invalid PDF bytes: parse failure must not surface.
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestService_CapsExcerptLength(t *testing.T) {
	s := NewService(config.ExtractConfig{MaxChars: 10})
	path := filepath.Join(t.TempDir(), "long.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0o644))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Len(t, text, 10)
}

func TestPlainExtractor(t *testing.T) {
	s := testService()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("facture électricité 2024\n"), 0o644))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Equal(t, "facture électricité 2024", text)
}

func TestPlainExtractor_BinaryContent(t *testing.T) {
	s := testService()
	path := filepath.Join(t.TempDir(), "fake.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01, 'a', 0x80, 0x80}, 0o644))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Bail commercial</w:t></w:r></w:p>
    <w:p><w:r><w:t>entre les parties</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDOCXExtractor(t *testing.T) {
	s := testService()
	path := filepath.Join(t.TempDir(), "bail.docx")
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   docxBody,
	})

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Bail commercial")
	assert.Contains(t, text, "entre les parties")
	assert.Contains(t, text, "Bail commercial\nentre les parties", "paragraph breaks become newlines")
}

func TestDOCXExtractor_MissingDocumentXML(t *testing.T) {
	s := testService()
	path := filepath.Join(t.TempDir(), "odd.docx")
	writeZip(t, path, map[string]string{"other.xml": "<x/>"})

	text, err := s.Text(path)
	require.NoError(t, err, "degrades, does not fail")
	assert.Empty(t, text)
}

const slideXML = `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <a:p><a:r><a:t>%s</a:t></a:r></a:p>
</p:sld>`

func TestPPTXExtractor_CapsSlides(t *testing.T) {
	s := NewService(config.ExtractConfig{MaxChars: 20000, PPTXMaxSlides: 2})
	path := filepath.Join(t.TempDir(), "deck.pptx")

	entries := map[string]string{
		"ppt/slides/slide1.xml": strings.Replace(slideXML, "%s", "diagnostic amiante", 1),
		"ppt/slides/slide2.xml": strings.Replace(slideXML, "%s", "plan de situation", 1),
		"ppt/slides/slide3.xml": strings.Replace(slideXML, "%s", "au dela de la limite", 1),
	}
	writeZip(t, path, entries)

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Contains(t, text, "diagnostic amiante")
	assert.Contains(t, text, "plan de situation")
	assert.NotContains(t, text, "au dela de la limite")
}

func TestXLSXExtractor(t *testing.T) {
	s := testService()
	path := filepath.Join(t.TempDir(), "comptes.xlsx")

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Feuille1")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("Facture")
	row.AddCell().SetString("2024-001")
	row = sheet.AddRow()
	row.AddCell().SetString("Montant")
	row.AddCell().SetString("1200")
	require.NoError(t, wb.Save(path))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Facture 2024-001")
	assert.Contains(t, text, "Montant 1200")
}

func TestXLSXExtractor_RowCap(t *testing.T) {
	s := NewService(config.ExtractConfig{MaxChars: 20000, XLSXMaxSheets: 1, XLSXMaxRows: 2})
	path := filepath.Join(t.TempDir(), "big.xlsx")

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Data")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		row := sheet.AddRow()
		row.AddCell().SetString("ligne")
	}
	require.NoError(t, wb.Save(path))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "ligne"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))

	// Never split a multibyte rune; the cut backs up to the previous
	// boundary and stays valid UTF-8.
	s := "propriété louée"
	for max := 1; max < len(s); max++ {
		got := Truncate(s, max)
		assert.LessOrEqual(t, len(got), max)
		assert.True(t, utf8.ValidString(got), "max=%d got=%q", max, got)
	}
	assert.Equal(t, "propri", Truncate("propriété", 7))
}

func TestService_TruncatesExcerptAtRuneBoundary(t *testing.T) {
	s := NewService(config.ExtractConfig{MaxChars: 9})

	path := filepath.Join(t.TempDir(), "bail.txt")
	require.NoError(t, os.WriteFile(path, []byte("propriété louée"), 0o644))

	text, err := s.Text(path)
	require.NoError(t, err)
	assert.Equal(t, "propriét", text)
	assert.True(t, utf8.ValidString(text))
}

func TestSlideNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"ppt/slides/slide1.xml", 1, true},
		{"ppt/slides/slide12.xml", 12, true},
		{"ppt/slides/_rels/slide1.xml.rels", 0, false},
		{"ppt/notesSlides/notesSlide1.xml", 0, false},
		{"word/document.xml", 0, false},
	}
	for _, tt := range tests {
		n, ok := slideNumber(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, n, tt.name)
		}
	}
}
