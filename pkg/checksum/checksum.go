package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// File returns the hex encoded sha256 digest of the file content.
// A migration unit source file is the serialized form of its forward
// and backward logic, so hashing the file detects post-application edits.
func File(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s for checksum: %w", path, err)
	}

	return Bytes(content), nil
}

// Bytes returns the hex encoded sha256 digest of the given content.
func Bytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
