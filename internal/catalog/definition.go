package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrMalformedMigration = errors.New("malformed migration")
	ErrDuplicateVersion   = errors.New("duplicate migration version")
)

// versionPattern is a 14 digit timestamp YYYYMMDDHHMMSS, so lexical order
// equals chronological order.
var versionPattern = regexp.MustCompile(`^[0-9]{14}$`)

// Operation is one direction of a migration unit. It receives the target
// database; everything else it needs must be captured in its closure.
type Operation func(ctx context.Context, db *mongo.Database) error

// Definition is one migration unit. Immutable after load.
type Definition struct {
	Version     string
	Description string
	Forward     Operation
	Backward    Operation

	// Filename and SourcePath are provenance of the unit's source file,
	// used for checksum recomputation and error messages.
	Filename   string
	SourcePath string
}

// Validate reports the first structural violation as ErrMalformedMigration.
func (d Definition) Validate() error {
	if !versionPattern.MatchString(d.Version) {
		return fmt.Errorf("%w: version '%s' must be a 14 digit timestamp (YYYYMMDDHHMMSS)",
			ErrMalformedMigration, d.Version)
	}

	if d.Description == "" {
		return fmt.Errorf("%w: version %s has empty description", ErrMalformedMigration, d.Version)
	}

	if d.Forward == nil {
		return fmt.Errorf("%w: version %s has no forward operation", ErrMalformedMigration, d.Version)
	}

	if d.Backward == nil {
		return fmt.Errorf("%w: version %s has no backward operation", ErrMalformedMigration, d.Version)
	}

	if d.Filename == "" {
		return fmt.Errorf("%w: version %s has no filename", ErrMalformedMigration, d.Version)
	}

	return nil
}
