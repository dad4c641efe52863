// Package extract produces bounded text excerpts from documents for
// classification. Each supported format has its own extractor; unknown
// formats yield empty text, and parse failures degrade to empty text with
// a logged diagnostic. Extraction never aborts the pipeline.
package extract

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/config"
)

// Extractor extracts text from one document format.
type Extractor interface {
	Extract(path string) (string, error)
}

// Service dispatches extraction by file extension and enforces the global
// excerpt cap.
type Service struct {
	maxChars int
	byExt    map[string]Extractor
}

// NewService builds a Service with all format extractors registered.
func NewService(cfg config.ExtractConfig) *Service {
	plain := &PlainExtractor{}
	return &Service{
		maxChars: cfg.MaxChars,
		byExt: map[string]Extractor{
			".pdf":  &PDFExtractor{MaxPages: cfg.PDFMaxPages},
			".docx": &DOCXExtractor{},
			".xlsx": &XLSXExtractor{MaxSheets: cfg.XLSXMaxSheets, MaxRows: cfg.XLSXMaxRows},
			".pptx": &PPTXExtractor{MaxSlides: cfg.PPTXMaxSlides},
			".txt":  plain,
			".md":   plain,
			".csv":  plain,
			".log":  plain,
		},
	}
}

// Eligible reports whether the path's extension has a registered extractor.
func (s *Service) Eligible(path string) bool {
	_, ok := s.byExt[ext(path)]
	return ok
}

// Text returns a bounded excerpt of the document at path. Unsupported
// formats return empty text. A parse failure on a supported format is
// logged and degrades to empty text. The only returned error is an
// unreadable source file.
func (s *Service) Text(path string) (string, error) {
	ex, ok := s.byExt[ext(path)]
	if !ok {
		return "", nil
	}

	// Verify readability up front so parse failures and I/O failures stay
	// distinguishable.
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: open %s", path)
	}
	f.Close()

	text, err := ex.Extract(path)
	if err != nil {
		zap.L().Warn("extract: degraded to empty text",
			zap.String("path", path),
			zap.Error(err),
		)
		return "", nil
	}

	return Truncate(strings.TrimSpace(text), s.maxChars), nil
}

// Truncate cuts s to at most max bytes without splitting a multibyte
// rune; accented text keeps valid UTF-8 at the cut point. max <= 0
// means no limit.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
