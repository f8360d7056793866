package migratesvc

import (
	"fmt"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/pkg/checksum"
)

// SourceFingerprint hashes the unit's source file. The file is the
// serialized form of both operations, so any post-application edit to
// either one changes the fingerprint.
type SourceFingerprint struct{}

var _ Fingerprinter = (*SourceFingerprint)(nil)

func (SourceFingerprint) Fingerprint(def catalog.Definition) (string, error) {
	if def.SourcePath == "" {
		return "", fmt.Errorf("migration %s has no source path to fingerprint", def.Version)
	}

	return checksum.File(def.SourcePath)
}
