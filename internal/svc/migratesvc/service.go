package migratesvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/internal/svc/staterepo"
)

var (
	// ErrTargetNotFound means a rollback target version is not in the
	// applied set. The batch is not started.
	ErrTargetNotFound = errors.New("target version not found in applied set")
)

// ExecutionError wraps the failing migration's version and the underlying
// cause. The batch halts on the first one; prior work in the same batch
// stays committed.
type ExecutionError struct {
	Version   string
	Direction string // "forward" or "backward"
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s failed on %s: %s", e.Version, e.Direction, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TxnRunner is the transactional boundary capability of the storage
// backend. Execute must run fn without a transaction when the deployment
// does not support one.
type TxnRunner interface {
	Supported(ctx context.Context) (bool, error)
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// Fingerprinter derives the content fingerprint of one migration unit,
// stored at apply time and recomputed at validation time.
type Fingerprinter interface {
	Fingerprint(def catalog.Definition) (string, error)
}

// Service is the migration runner API.
type Service interface {
	// Initialize prepares the applied-state store. Safe on every startup.
	Initialize(ctx context.Context) error

	// Migrate applies every pending migration ascending, optionally only
	// up to and including a target version.
	Migrate(ctx context.Context, input InputMigrate) (OutMigrate, error)

	// Rollback reverts applied migrations descending, either down to (but
	// not including) a target version, or the last N steps.
	Rollback(ctx context.Context, input InputRollback) (OutRollback, error)

	// Status cross references catalog and applied-state.
	Status(ctx context.Context) (OutStatus, error)

	// Validate reports drift between catalog and applied-state. Read-only.
	Validate(ctx context.Context) (OutValidate, error)

	// CreateMigration scaffolds a new empty migration unit with a fresh
	// timestamp version. Convenience generator, not execution-critical.
	CreateMigration(ctx context.Context, input InputCreateMigration) (OutCreateMigration, error)
}

type InputMigrate struct {
	// TargetVersion, when set, limits the batch to versions lower or
	// equal to it (inclusive).
	TargetVersion string
}

// BatchEntry is one successfully executed migration of a batch.
type BatchEntry struct {
	Version     string `json:"version"`
	Description string `json:"description"`
	DurationMS  int64  `json:"duration_ms"`
}

type OutMigrate struct {
	Count   int          `json:"count"`
	Applied []BatchEntry `json:"applied"`
}

type InputRollback struct {
	// TargetVersion, when set, must be in the applied set. Everything
	// strictly after it is rolled back; the target itself is retained
	// (rolled back to, not including). Intentionally asymmetric with
	// InputMigrate.TargetVersion, which is inclusive: the target names
	// the state to end at.
	TargetVersion string

	// Steps is the number of most recent versions to roll back when no
	// target is given. Zero means one.
	Steps int
}

type OutRollback struct {
	Count      int          `json:"count"`
	RolledBack []BatchEntry `json:"rolled_back"`
}

type OutStatus struct {
	Total           int                       `json:"total"`
	AppliedCount    int                       `json:"applied_count"`
	PendingCount    int                       `json:"pending_count"`
	AppliedVersions []string                  `json:"applied_versions"`
	PendingVersions []string                  `json:"pending_versions"`
	LastApplied     *staterepo.AppliedRecord  `json:"last_applied,omitempty"`
}

type IssueKind string

const (
	IssueMissingFile      IssueKind = "missing_file"
	IssueChecksumMismatch IssueKind = "checksum_mismatch"
	IssueOutOfOrder       IssueKind = "out_of_order"
)

type Issue struct {
	Kind    IssueKind `json:"kind"`
	Version string    `json:"version"`
	Detail  string    `json:"detail"`
}

type OutValidate struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

type InputCreateMigration struct {
	Name        string `validate:"required"`
	Description string
}

type OutCreateMigration struct {
	Version  string `json:"version"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}
