package extract

import (
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// PDFExtractor reads page text from PDF documents.
type PDFExtractor struct {
	// MaxPages bounds how many pages are read, independent of document size.
	MaxPages int
}

func (e *PDFExtractor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "pdf: open %s", path)
	}
	defer f.Close()

	pages := r.NumPage()
	if e.MaxPages > 0 && pages > e.MaxPages {
		pages = e.MaxPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not discard the rest.
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
