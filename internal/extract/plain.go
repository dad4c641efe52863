package extract

import (
	"io"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// plainMaxBytes bounds the read from plaintext files.
const plainMaxBytes = 32 * 1024

// PlainExtractor reads the head of text files (txt, md, csv, log).
// Binary content masquerading under a text extension yields empty text.
type PlainExtractor struct{}

func (e *PlainExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "plain: open %s", path)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, plainMaxBytes))
	if err != nil {
		return "", eris.Wrapf(err, "plain: read %s", path)
	}

	// A truncated read can split a multibyte rune; trim at most one rune's
	// worth of trailing bytes before validating.
	for i := 0; i < utf8.UTFMax-1 && len(raw) > 0 && !utf8.Valid(raw); i++ {
		raw = raw[:len(raw)-1]
	}
	if !utf8.Valid(raw) {
		return "", nil
	}
	return string(raw), nil
}
