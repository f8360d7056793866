package migratesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/internal/svc/staterepo"
	"github.com/yusufsyaifudin/boyong/pkg/tracer"
	"github.com/yusufsyaifudin/boyong/pkg/uid"
	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel/trace"
)

type DefaultServiceConfig struct {
	Catalog       *catalog.Catalog `validate:"required"`
	StateRepo     staterepo.Repo   `validate:"required"`
	Txn           TxnRunner        `validate:"required"`
	Fingerprinter Fingerprinter    `validate:"required"`
	UIDGen        uid.UID          `validate:"required"`

	// Database is handed to every operation. Nil is allowed so batches
	// can be rehearsed against an in-memory state repo without a live
	// deployment; operations must then not touch it.
	Database *mongo.Database

	// MigrationsDir is where CreateMigration writes new unit files.
	MigrationsDir string `validate:"required"`
}

// DefaultService is the execution engine. Migrations within a batch run
// strictly one at a time, in order; there is no parallel execution because
// later migrations may depend on schema state left by earlier ones. It
// assumes a single runner process; concurrent batches from two processes
// against the same backend can corrupt the applied set.
type DefaultService struct {
	Config DefaultServiceConfig
}

var _ Service = (*DefaultService)(nil)

func New(dep DefaultServiceConfig) (*DefaultService, error) {
	if err := validator.Validate(dep); err != nil {
		return nil, err
	}

	return &DefaultService{
		Config: dep,
	}, nil
}

func (d *DefaultService) Initialize(ctx context.Context) error {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "migratesvc.Initialize")
	defer span.End()

	err := d.Config.StateRepo.EnsureInitialized(ctx)
	if err != nil {
		ylog.Error(ctx, "applied-state store initialization failed", ylog.KV("error", err))
		return fmt.Errorf("error initialize applied-state store: %w", err)
	}

	return nil
}

func (d *DefaultService) Migrate(ctx context.Context, input InputMigrate) (out OutMigrate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "migratesvc.Migrate")
	defer span.End()

	batchID := d.batchID(ctx)
	out.Applied = make([]BatchEntry, 0)

	appliedSet, err := d.appliedSet(ctx)
	if err != nil {
		return
	}

	pending := make([]catalog.Definition, 0)
	for _, def := range d.Config.Catalog.Definitions() {
		if _, exist := appliedSet[def.Version]; exist {
			continue
		}

		// versions are 14 digit timestamps, lexical compare is
		// chronological compare
		if input.TargetVersion != "" && def.Version > input.TargetVersion {
			continue
		}

		pending = append(pending, def)
	}

	if len(pending) == 0 {
		ylog.Info(ctx, "nothing to migrate, applied set is up to date",
			ylog.KV("batch_id", batchID))
		return
	}

	d.warnWhenNoTxn(ctx, batchID)

	for _, def := range pending {
		entry, execErr := d.applyOne(ctx, def)
		if execErr != nil {
			err = execErr
			return
		}

		ylog.Info(ctx, "migration applied",
			ylog.KV("batch_id", batchID),
			ylog.KV("version", def.Version),
			ylog.KV("description", def.Description),
			ylog.KV("duration_ms", entry.DurationMS),
		)

		out.Applied = append(out.Applied, entry)
		out.Count = len(out.Applied)
	}

	return
}

// applyOne runs one forward migration plus its state write inside a single
// transactional scope.
func (d *DefaultService) applyOne(ctx context.Context, def catalog.Definition) (entry BatchEntry, err error) {
	sum, err := d.Config.Fingerprinter.Fingerprint(def)
	if err != nil {
		err = d.failed(ctx, def, "forward", err)
		return
	}

	start := time.Now()

	err = d.Config.Txn.Execute(ctx, func(ctx context.Context) error {
		if _err := def.Forward(ctx, d.Config.Database); _err != nil {
			return _err
		}

		return d.Config.StateRepo.Record(ctx, staterepo.AppliedRecord{
			Version:     def.Version,
			Description: def.Description,
			Filename:    def.Filename,
			AppliedAt:   time.Now().UTC(),
			Checksum:    sum,
		})
	})
	if err != nil {
		err = d.failed(ctx, def, "forward", err)
		return
	}

	entry = BatchEntry{
		Version:     def.Version,
		Description: def.Description,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	return
}

func (d *DefaultService) Rollback(ctx context.Context, input InputRollback) (out OutRollback, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "migratesvc.Rollback")
	defer span.End()

	batchID := d.batchID(ctx)
	out.RolledBack = make([]BatchEntry, 0)

	applied, err := d.Config.StateRepo.ListApplied(ctx)
	if err != nil {
		err = fmt.Errorf("error list applied records: %w", err)
		return
	}

	if len(applied) == 0 {
		ylog.Info(ctx, "nothing to roll back, applied set is empty",
			ylog.KV("batch_id", batchID))
		return
	}

	targets, err := rollbackTargets(applied, input)
	if err != nil {
		return
	}

	if len(targets) == 0 {
		return
	}

	d.warnWhenNoTxn(ctx, batchID)

	for _, rec := range targets {
		def, exist := d.Config.Catalog.ByVersion(rec.Version)
		if !exist {
			// deliberate tolerance: the unit file was deleted after it
			// was applied, skipping keeps the rest of the batch usable
			ylog.Warn(ctx, "applied record has no matching migration unit, skipping rollback",
				ylog.KV("batch_id", batchID),
				ylog.KV("version", rec.Version),
				ylog.KV("filename", rec.Filename),
			)
			continue
		}

		start := time.Now()

		err = d.Config.Txn.Execute(ctx, func(ctx context.Context) error {
			if _err := def.Backward(ctx, d.Config.Database); _err != nil {
				return _err
			}

			return d.Config.StateRepo.Remove(ctx, def.Version)
		})
		if err != nil {
			// already rolled-back entries stay rolled back, there is no
			// compensating re-apply
			err = d.failed(ctx, def, "backward", err)
			return
		}

		entry := BatchEntry{
			Version:     def.Version,
			Description: def.Description,
			DurationMS:  time.Since(start).Milliseconds(),
		}

		ylog.Info(ctx, "migration rolled back",
			ylog.KV("batch_id", batchID),
			ylog.KV("version", def.Version),
			ylog.KV("description", def.Description),
			ylog.KV("duration_ms", entry.DurationMS),
		)

		out.RolledBack = append(out.RolledBack, entry)
		out.Count = len(out.RolledBack)
	}

	return
}

// rollbackTargets selects which applied records to roll back, most recent
// first. With a target version, everything strictly after it is selected
// and the target itself is retained. Without one, the last `steps` records
// are selected.
func rollbackTargets(applied []staterepo.AppliedRecord, input InputRollback) ([]staterepo.AppliedRecord, error) {
	cut := -1
	if input.TargetVersion != "" {
		for i, rec := range applied {
			if rec.Version == input.TargetVersion {
				cut = i
				break
			}
		}

		if cut < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, input.TargetVersion)
		}
	} else {
		steps := input.Steps
		if steps <= 0 {
			steps = 1
		}

		cut = len(applied) - steps - 1
		if cut < -1 {
			cut = -1
		}
	}

	targets := make([]staterepo.AppliedRecord, 0, len(applied)-cut-1)
	for i := len(applied) - 1; i > cut; i-- {
		targets = append(targets, applied[i])
	}

	return targets, nil
}

func (d *DefaultService) Status(ctx context.Context) (out OutStatus, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "migratesvc.Status")
	defer span.End()

	applied, err := d.Config.StateRepo.ListApplied(ctx)
	if err != nil {
		err = fmt.Errorf("error list applied records: %w", err)
		return
	}

	appliedSet := make(map[string]struct{}, len(applied))
	out.AppliedVersions = make([]string, 0, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = struct{}{}
		out.AppliedVersions = append(out.AppliedVersions, rec.Version)
	}

	out.PendingVersions = make([]string, 0)
	for _, version := range d.Config.Catalog.Versions() {
		if _, exist := appliedSet[version]; exist {
			continue
		}

		out.PendingVersions = append(out.PendingVersions, version)
	}

	out.Total = d.Config.Catalog.Len()
	out.AppliedCount = len(applied)
	out.PendingCount = len(out.PendingVersions)

	if len(applied) > 0 {
		last := applied[len(applied)-1]
		out.LastApplied = &last
	}

	return
}

func (d *DefaultService) Validate(ctx context.Context) (out OutValidate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "migratesvc.Validate")
	defer span.End()

	applied, err := d.Config.StateRepo.ListApplied(ctx)
	if err != nil {
		err = fmt.Errorf("error list applied records: %w", err)
		return
	}

	out.Issues = make([]Issue, 0)

	for _, rec := range applied {
		def, exist := d.Config.Catalog.ByVersion(rec.Version)
		if !exist {
			out.Issues = append(out.Issues, Issue{
				Kind:    IssueMissingFile,
				Version: rec.Version,
				Detail:  fmt.Sprintf("applied record %s has no migration unit (was %s)", rec.Version, rec.Filename),
			})
			continue
		}

		sum, _err := d.Config.Fingerprinter.Fingerprint(def)
		if _err != nil {
			out.Issues = append(out.Issues, Issue{
				Kind:    IssueMissingFile,
				Version: rec.Version,
				Detail:  fmt.Sprintf("cannot recompute checksum: %s", _err),
			})
			continue
		}

		if sum != rec.Checksum {
			out.Issues = append(out.Issues, Issue{
				Kind:    IssueChecksumMismatch,
				Version: rec.Version,
				Detail:  fmt.Sprintf("unit %s was edited after application", def.Filename),
			})
		}
	}

	for _, version := range d.Config.Catalog.OutOfOrder() {
		out.Issues = append(out.Issues, Issue{
			Kind:    IssueOutOfOrder,
			Version: version,
			Detail:  "filename order diverges from version order",
		})
	}

	out.Valid = len(out.Issues) == 0
	return
}

// failed logs one migration failure and wraps it as ExecutionError.
func (d *DefaultService) failed(ctx context.Context, def catalog.Definition, direction string, cause error) error {
	ylog.Error(ctx, "migration failed, halting batch",
		ylog.KV("version", def.Version),
		ylog.KV("description", def.Description),
		ylog.KV("direction", direction),
		ylog.KV("error", cause),
	)

	return &ExecutionError{
		Version:   def.Version,
		Direction: direction,
		Err:       cause,
	}
}

func (d *DefaultService) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	applied, err := d.Config.StateRepo.ListApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("error list applied records: %w", err)
	}

	set := make(map[string]struct{}, len(applied))
	for _, rec := range applied {
		set[rec.Version] = struct{}{}
	}

	return set, nil
}

// warnWhenNoTxn surfaces the accepted consistency weakening on standalone
// deployments: a crash between an operation and its state write leaves the
// schema changed but unrecorded.
func (d *DefaultService) warnWhenNoTxn(ctx context.Context, batchID uint64) {
	supported, err := d.Config.Txn.Supported(ctx)
	if err != nil {
		ylog.Warn(ctx, "cannot probe transaction support",
			ylog.KV("batch_id", batchID), ylog.KV("error", err))
		return
	}

	if !supported {
		ylog.Warn(ctx, "deployment has no multi-document transactions, running without transactional boundary",
			ylog.KV("batch_id", batchID))
	}
}

func (d *DefaultService) batchID(ctx context.Context) uint64 {
	id, err := d.Config.UIDGen.NextID()
	if err != nil {
		// batch ids are log correlation only, never fail a batch over one
		ylog.Warn(ctx, "cannot generate batch id", ylog.KV("error", err))
		return 0
	}

	return id
}
