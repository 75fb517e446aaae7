package app

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/hiresflow/upshift/internal/domain"
)

// fingerprintFile returns the hex SHA-256 of the file's contents.
// The hash identifies delivered content in the ledger, so a renamed or
// re-copied source with identical bytes is still recognized.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: source vanished before fingerprinting: %s", domain.ErrInvalidInput, path)
		}
		// Locked or permission-flapping files recover on retry.
		return "", fmt.Errorf("%w: open for fingerprint: %v", domain.ErrTransient, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: read for fingerprint: %v", domain.ErrTransient, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
