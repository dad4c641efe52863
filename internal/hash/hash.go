// Package hash computes content fingerprints for duplicate detection.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/gedworks/archive-cli/internal/model"
)

// chunkSize bounds memory per file regardless of file size.
const chunkSize = 64 * 1024

// File streams the file at path through SHA-256 and returns the
// hex-encoded fingerprint. The result depends only on file content, not
// on name, timestamps or permissions.
func File(path string) (model.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "hash: open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", eris.Wrapf(err, "hash: read %s", path)
	}

	return model.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}
