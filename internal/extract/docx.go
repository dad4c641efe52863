package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// docxMaxParagraphs bounds the paragraphs read from a Word document.
const docxMaxParagraphs = 200

// DOCXExtractor reads paragraph text from Word documents. OOXML is a zip
// archive; body text lives in word/document.xml as w:t runs.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrapf(err, "docx: open %s", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrap(err, "docx: open document.xml")
		}
		defer rc.Close()
		return collectRuns(rc, "t", "p", docxMaxParagraphs)
	}
	return "", eris.Errorf("docx: no document.xml in %s", path)
}

// collectRuns walks an OOXML stream collecting character data inside
// textElem elements, inserting a newline at each closing breakElem, up to
// maxBreaks blocks.
func collectRuns(r io.Reader, textElem, breakElem string, maxBreaks int) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	breaks := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "ooxml: decode")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				inText = false
			case breakElem:
				b.WriteByte('\n')
				breaks++
				if maxBreaks > 0 && breaks >= maxBreaks {
					return b.String(), nil
				}
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
