package classify

import (
	"fmt"
	"strings"
	"time"
)

var fileNameSanitizer = strings.NewReplacer(
	" ", "_",
	"(", "",
	")", "",
	"/", "_",
	"\\", "_",
	":", "_",
)

// SanitizeFileName rewrites original so it is safe as a path segment.
// Spaces become underscores and parentheses are dropped; the result stays
// close enough to the source name for a human to trace it back.
func SanitizeFileName(original string) string {
	return fileNameSanitizer.Replace(strings.TrimSpace(original))
}

// ArchivalFileName builds the normalized destination name
// {YYYYMMDD}_{CATEGORY}_{Subcategory}_{sanitized original}.
func ArchivalFileName(at time.Time, category, subcategory, original string) string {
	return fmt.Sprintf("%s_%s_%s_%s",
		at.Format("20060102"), category, subcategory, SanitizeFileName(original))
}
