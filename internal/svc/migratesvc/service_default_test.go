package migratesvc_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/internal/svc/staterepo"
	"github.com/yusufsyaifudin/boyong/pkg/uid"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// txnPassthrough runs the closure directly, no transactional boundary.
type txnPassthrough struct {
	supported bool
}

func (t *txnPassthrough) Supported(_ context.Context) (bool, error) {
	return t.supported, nil
}

func (t *txnPassthrough) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// staticFingerprint returns a fixed fingerprint per version.
type staticFingerprint map[string]string

func (s staticFingerprint) Fingerprint(def catalog.Definition) (string, error) {
	sum, ok := s[def.Version]
	if !ok {
		return "", fmt.Errorf("no source for %s", def.Version)
	}

	return sum, nil
}

func noop(_ context.Context, _ *mongo.Database) error { return nil }

func defOf(version, slug string) catalog.Definition {
	return catalog.Definition{
		Version:     version,
		Description: slug,
		Forward:     noop,
		Backward:    noop,
		Filename:    version + "_" + slug + ".go",
	}
}

type fixture struct {
	svc  *migratesvc.DefaultService
	repo *staterepo.RepoInmem
}

func newFixture(t *testing.T, defs []catalog.Definition, fp migratesvc.Fingerprinter) fixture {
	t.Helper()

	cat, err := catalog.Load(catalog.SliceSource(defs))
	require.NoError(t, err)

	if fp == nil {
		static := staticFingerprint{}
		for _, def := range defs {
			static[def.Version] = "sum-" + def.Version
		}
		fp = static
	}

	uidGen, err := uid.NewSonyflake()
	require.NoError(t, err)

	repo := staterepo.Inmem()
	svc, err := migratesvc.New(migratesvc.DefaultServiceConfig{
		Catalog:       cat,
		StateRepo:     repo,
		Txn:           &txnPassthrough{supported: true},
		Fingerprinter: fp,
		UIDGen:        uidGen,
		MigrationsDir: t.TempDir(),
	})
	require.NoError(t, err)

	return fixture{svc: svc, repo: repo}
}

func appliedVersions(t *testing.T, repo *staterepo.RepoInmem) []string {
	t.Helper()

	records, err := repo.ListApplied(context.Background())
	require.NoError(t, err)

	versions := make([]string, 0, len(records))
	for _, rec := range records {
		versions = append(versions, rec.Version)
	}

	return versions
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	defs := []catalog.Definition{
		defOf("20240101000000", "users"),
		defOf("20240102000000", "orders"),
		defOf("20240103000000", "invoices"),
	}

	t.Run("applies everything ascending", func(t *testing.T) {
		f := newFixture(t, defs, nil)

		out, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Count)

		got := make([]string, 0, len(out.Applied))
		for _, e := range out.Applied {
			got = append(got, e.Version)
		}
		assert.Equal(t, []string{"20240101000000", "20240102000000", "20240103000000"}, got)
		assert.Equal(t, got, appliedVersions(t, f.repo))
	})

	t.Run("second run applies nothing", func(t *testing.T) {
		f := newFixture(t, defs, nil)

		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		out, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.Empty(t, out.Applied)
	})

	t.Run("target version is inclusive", func(t *testing.T) {
		f := newFixture(t, defs, nil)

		out, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{TargetVersion: "20240102000000"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, []string{"20240101000000", "20240102000000"}, appliedVersions(t, f.repo))
	})

	t.Run("records checksum at apply time", func(t *testing.T) {
		f := newFixture(t, defs, nil)

		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		records, err := f.repo.ListApplied(ctx)
		require.NoError(t, err)
		for _, rec := range records {
			assert.Equal(t, "sum-"+rec.Version, rec.Checksum)
		}
	})

	t.Run("halts on first failure keeping prior work", func(t *testing.T) {
		boom := errors.New("index clash")
		failing := []catalog.Definition{
			defOf("20240101000000", "users"),
			{
				Version:     "20240102000000",
				Description: "orders",
				Forward:     func(_ context.Context, _ *mongo.Database) error { return boom },
				Backward:    noop,
				Filename:    "20240102000000_orders.go",
			},
			defOf("20240103000000", "invoices"),
		}

		f := newFixture(t, failing, nil)

		out, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.Error(t, err)

		var execErr *migratesvc.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "20240102000000", execErr.Version)
		assert.Equal(t, "forward", execErr.Direction)
		assert.ErrorIs(t, err, boom)

		// first migration stays applied, third never ran
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, []string{"20240101000000"}, appliedVersions(t, f.repo))
	})
}

func TestRollback(t *testing.T) {
	ctx := context.Background()

	defs := []catalog.Definition{
		defOf("20240101000000", "users"),
		defOf("20240102000000", "orders"),
		defOf("20240103000000", "invoices"),
	}

	migrated := func(t *testing.T) fixture {
		f := newFixture(t, defs, nil)
		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)
		return f
	}

	t.Run("empty applied set is a successful no-op", func(t *testing.T) {
		f := newFixture(t, defs, nil)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{Steps: 2})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
	})

	t.Run("one step reverts only the most recent", func(t *testing.T) {
		f := migrated(t)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{})
		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, "20240103000000", out.RolledBack[0].Version)
		assert.Equal(t, []string{"20240101000000", "20240102000000"}, appliedVersions(t, f.repo))
	})

	t.Run("steps revert descending", func(t *testing.T) {
		f := migrated(t)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{Steps: 2})
		require.NoError(t, err)
		require.Equal(t, 2, out.Count)
		assert.Equal(t, "20240103000000", out.RolledBack[0].Version)
		assert.Equal(t, "20240102000000", out.RolledBack[1].Version)
		assert.Equal(t, []string{"20240101000000"}, appliedVersions(t, f.repo))
	})

	t.Run("target version is retained", func(t *testing.T) {
		f := migrated(t)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{TargetVersion: "20240101000000"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, []string{"20240101000000"}, appliedVersions(t, f.repo))
	})

	t.Run("target at the newest version reverts nothing", func(t *testing.T) {
		f := migrated(t)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{TargetVersion: "20240103000000"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.Equal(t, []string{"20240101000000", "20240102000000", "20240103000000"}, appliedVersions(t, f.repo))
	})

	t.Run("unknown target fails before any work", func(t *testing.T) {
		f := migrated(t)

		_, err := f.svc.Rollback(ctx, migratesvc.InputRollback{TargetVersion: "20200101000000"})
		assert.ErrorIs(t, err, migratesvc.ErrTargetNotFound)
		assert.Len(t, appliedVersions(t, f.repo), 3)
	})

	t.Run("migrate then rollback round-trips", func(t *testing.T) {
		f := migrated(t)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{Steps: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Count)
		assert.Empty(t, appliedVersions(t, f.repo))
	})

	t.Run("halts on backward failure", func(t *testing.T) {
		boom := errors.New("cannot drop collection")
		failing := []catalog.Definition{
			defOf("20240101000000", "users"),
			{
				Version:     "20240102000000",
				Description: "orders",
				Forward:     noop,
				Backward:    func(_ context.Context, _ *mongo.Database) error { return boom },
				Filename:    "20240102000000_orders.go",
			},
			defOf("20240103000000", "invoices"),
		}

		f := newFixture(t, failing, nil)
		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{Steps: 3})
		require.Error(t, err)

		var execErr *migratesvc.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "20240102000000", execErr.Version)
		assert.Equal(t, "backward", execErr.Direction)

		// newest was rolled back before the failure, the rest stays
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, []string{"20240101000000", "20240102000000"}, appliedVersions(t, f.repo))
	})

	t.Run("skips applied record with no matching unit", func(t *testing.T) {
		f := migrated(t)

		// simulate a unit file deleted after application
		require.NoError(t, f.repo.Record(ctx, staterepo.AppliedRecord{
			Version:     "20240104000000",
			Description: "ghost",
			Filename:    "20240104000000_ghost.go",
			Checksum:    "sum-ghost",
		}))

		out, err := f.svc.Rollback(ctx, migratesvc.InputRollback{Steps: 2})
		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, "20240103000000", out.RolledBack[0].Version)

		// the ghost record stays untouched
		assert.Contains(t, appliedVersions(t, f.repo), "20240104000000")
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	defs := []catalog.Definition{
		defOf("20240101000000", "users"),
		defOf("20240102000000", "orders"),
		defOf("20240103000000", "invoices"),
	}

	f := newFixture(t, defs, nil)

	out, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 0, out.AppliedCount)
	assert.Equal(t, 3, out.PendingCount)
	assert.Nil(t, out.LastApplied)

	_, err = f.svc.Migrate(ctx, migratesvc.InputMigrate{TargetVersion: "20240102000000"})
	require.NoError(t, err)

	out, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.AppliedCount)
	assert.Equal(t, 1, out.PendingCount)
	assert.Equal(t, []string{"20240101000000", "20240102000000"}, out.AppliedVersions)
	assert.Equal(t, []string{"20240103000000"}, out.PendingVersions)
	require.NotNil(t, out.LastApplied)
	assert.Equal(t, "20240102000000", out.LastApplied.Version)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("clean state is valid", func(t *testing.T) {
		defs := []catalog.Definition{
			defOf("20240101000000", "users"),
			defOf("20240102000000", "orders"),
		}

		f := newFixture(t, defs, nil)
		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		out, err := f.svc.Validate(ctx)
		require.NoError(t, err)
		assert.True(t, out.Valid)
		assert.Empty(t, out.Issues)
	})

	t.Run("edited unit yields exactly one checksum mismatch", func(t *testing.T) {
		dir := t.TempDir()
		write := func(name, body string) string {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			return path
		}

		defs := []catalog.Definition{
			defOf("20240101000000", "users"),
			defOf("20240102000000", "orders"),
		}
		defs[0].SourcePath = write(defs[0].Filename, "create users collection")
		defs[1].SourcePath = write(defs[1].Filename, "create orders collection")

		f := newFixture(t, defs, migratesvc.SourceFingerprint{})
		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		write(defs[1].Filename, "create orders collection, now with an index")

		out, err := f.svc.Validate(ctx)
		require.NoError(t, err)
		assert.False(t, out.Valid)
		require.Len(t, out.Issues, 1)
		assert.Equal(t, migratesvc.IssueChecksumMismatch, out.Issues[0].Kind)
		assert.Equal(t, "20240102000000", out.Issues[0].Version)
	})

	t.Run("applied record without a unit is a missing file", func(t *testing.T) {
		defs := []catalog.Definition{
			defOf("20240101000000", "users"),
		}

		f := newFixture(t, defs, nil)
		_, err := f.svc.Migrate(ctx, migratesvc.InputMigrate{})
		require.NoError(t, err)

		require.NoError(t, f.repo.Record(ctx, staterepo.AppliedRecord{
			Version:     "20240102000000",
			Description: "ghost",
			Filename:    "20240102000000_ghost.go",
			Checksum:    "sum-ghost",
		}))

		out, err := f.svc.Validate(ctx)
		require.NoError(t, err)
		assert.False(t, out.Valid)
		require.Len(t, out.Issues, 1)
		assert.Equal(t, migratesvc.IssueMissingFile, out.Issues[0].Kind)
		assert.Equal(t, "20240102000000", out.Issues[0].Version)
	})

	t.Run("out of order filenames are reported", func(t *testing.T) {
		defs := []catalog.Definition{
			defOf("20240102000000", "orders"),
			defOf("20240101000000", "users"),
		}
		// filename order intentionally disagrees with version order
		defs[0].Filename = "20240100000000_orders.go"

		f := newFixture(t, defs, nil)

		out, err := f.svc.Validate(ctx)
		require.NoError(t, err)
		assert.False(t, out.Valid)
		require.Len(t, out.Issues, 1)
		assert.Equal(t, migratesvc.IssueOutOfOrder, out.Issues[0].Kind)
	})
}

func TestCreateMigration(t *testing.T) {
	ctx := context.Background()

	defs := []catalog.Definition{
		defOf("20240101000000", "users"),
	}

	f := newFixture(t, defs, nil)

	out, err := f.svc.CreateMigration(ctx, migratesvc.InputCreateMigration{
		Name:        "Add Orders Index!",
		Description: "add unique index on orders",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^[0-9]{14}$`, out.Version)
	assert.Equal(t, out.Version+"_add_orders_index.go", out.Filename)

	body, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "package migrations")
	assert.Contains(t, string(body), `Version:     "`+out.Version+`"`)
	assert.Contains(t, string(body), "catalog.MustRegister")

	t.Run("name is required", func(t *testing.T) {
		_, err := f.svc.CreateMigration(ctx, migratesvc.InputCreateMigration{})
		assert.Error(t, err)
	})
}
