package extract

import (
	"archive/zip"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PPTXExtractor reads shape text from PowerPoint slides. Slides live in
// ppt/slides/slideN.xml with text in a:t runs.
type PPTXExtractor struct {
	// MaxSlides bounds how many slides are read, by slide number.
	MaxSlides int
}

func (e *PPTXExtractor) Extract(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrapf(err, "pptx: open %s", path)
	}
	defer zr.Close()

	var b strings.Builder
	for _, f := range zr.File {
		n, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		if e.MaxSlides > 0 && n > e.MaxSlides {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "pptx: open %s", f.Name)
		}
		text, err := collectRuns(rc, "t", "p", 0)
		rc.Close()
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func slideNumber(name string) (int, bool) {
	const prefix = "ppt/slides/slide"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml"))
	if err != nil {
		return 0, false
	}
	return n, true
}
