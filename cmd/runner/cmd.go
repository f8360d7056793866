package runner

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/satori/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/boyong/config"
	"github.com/yusufsyaifudin/boyong/container"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
)

const (
	ExitSuccess = 0
	ExitErr     = -1
)

// Cmd is one migration runner subcommand. Every subcommand shares the same
// bootstrap (config, logger, storage connection) and differs only in the
// operation it executes.
type Cmd struct {
	flags      *flag.FlagSet
	synopsis   string
	configFile string

	// operation-specific flags, only some subcommands read them
	target string
	steps  int
	name   string
	desc   string

	exec func(ctx context.Context, c *Cmd, svc migratesvc.Service) error
}

var _ cli.Command = (*Cmd)(nil)

func newCmd(synopsis string, exec func(ctx context.Context, c *Cmd, svc migratesvc.Service) error) *Cmd {
	cmd := &Cmd{
		flags:    flag.NewFlagSet("", flag.ContinueOnError),
		synopsis: synopsis,
		exec:     exec,
	}

	cmd.flags.StringVar(&cmd.configFile, "config", "config.yml", "Config file to load")
	cmd.flags.StringVar(&cmd.configFile, "c", "config.yml", "Alias for config file to load")
	return cmd
}

func (c *Cmd) Help() string {
	return c.synopsis
}

func (c *Cmd) Synopsis() string {
	return c.synopsis
}

func (c *Cmd) Run(args []string) int {
	err := c.flags.Parse(args)
	if err != nil {
		log.Printf("error parsing arguments: %s", err)
		return ExitErr
	}

	// ** load config file
	configVal := &config.Config{}
	zapLog, err := config.Setup(c.configFile, configVal)
	if err != nil {
		log.Printf("error load config: %s", err)
		return ExitErr
	}

	configVal.SetDefault()

	// ** set global logger and define system context
	ylog.SetGlobalLogger(ylog.NewZap(zapLog))

	ctx := context.Background()
	traceLog, err := ylog.NewTracer(tracer.LogData{
		RemoteAddr: "system",
		TraceID:    uuid.NewV4().String(),
	}, ylog.WithTag("tracer"))
	if err != nil {
		log.Printf("error prepare tracer system data: %s", err)
		return ExitErr
	}

	ctx = ylog.Inject(ctx, traceLog)

	// ** setup repositories
	ylog.Info(ctx, "container preparation: starting")
	var repositories container.Repositories
	repositories, err = container.SetupRepositories(ctx, configVal.MongoDB, configVal.Migration)
	defer func() {
		if repositories == nil {
			return
		}

		if _err := repositories.Close(); _err != nil {
			ylog.Error(ctx, "closing container: failed", ylog.KV("error", _err))
		}
	}()

	if err != nil {
		ylog.Error(ctx, "container preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	// ** setup services
	services, err := container.SetupServices(configVal.Migration, repositories)
	if err != nil {
		ylog.Error(ctx, "service preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	migrateSvc := services.Migrate()

	if err = migrateSvc.Initialize(ctx); err != nil {
		ylog.Error(ctx, "applied-state store preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	if err = c.exec(ctx, c, migrateSvc); err != nil {
		ylog.Error(ctx, "command failed", ylog.KV("error", err))
		return ExitErr
	}

	return ExitSuccess
}

// NewUpCmd applies every pending migration, optionally only up to and
// including -target.
func NewUpCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := newCmd(`Apply pending migrations in version order`, execUp)
		cmd.flags.StringVar(&cmd.target, "target", "", "Stop after this version (inclusive)")
		return cmd, nil
	}
}

func execUp(ctx context.Context, c *Cmd, svc migratesvc.Service) error {
	out, err := svc.Migrate(ctx, migratesvc.InputMigrate{TargetVersion: c.target})
	if err != nil {
		return err
	}

	ylog.Info(ctx, "migrate finished", ylog.KV("count", out.Count))
	return printJSON(out)
}

// NewDownCmd reverts applied migrations, newest first.
func NewDownCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := newCmd(`Revert applied migrations, newest first`, execDown)
		cmd.flags.StringVar(&cmd.target, "target", "", "Roll back to this version, keeping it applied")
		cmd.flags.IntVar(&cmd.steps, "steps", 1, "Number of migrations to revert when no target given")
		return cmd, nil
	}
}

func execDown(ctx context.Context, c *Cmd, svc migratesvc.Service) error {
	out, err := svc.Rollback(ctx, migratesvc.InputRollback{
		TargetVersion: c.target,
		Steps:         c.steps,
	})
	if err != nil {
		return err
	}

	ylog.Info(ctx, "rollback finished", ylog.KV("count", out.Count))
	return printJSON(out)
}

// NewStatusCmd cross references the catalog against the applied set.
func NewStatusCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		return newCmd(`Show applied and pending migrations`, execStatus), nil
	}
}

func execStatus(ctx context.Context, _ *Cmd, svc migratesvc.Service) error {
	out, err := svc.Status(ctx)
	if err != nil {
		return err
	}

	return printJSON(out)
}

// NewValidateCmd reports drift. Exits non-zero when any issue is found so it
// can gate a CI pipeline.
func NewValidateCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		return newCmd(`Detect drift between migration units and applied state`, execValidate), nil
	}
}

func execValidate(ctx context.Context, _ *Cmd, svc migratesvc.Service) error {
	out, err := svc.Validate(ctx)
	if err != nil {
		return err
	}

	if err = printJSON(out); err != nil {
		return err
	}

	if !out.Valid {
		return fmt.Errorf("found %d validation issue(s)", len(out.Issues))
	}

	return nil
}

// NewCreateCmd scaffolds a new migration unit file.
func NewCreateCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := newCmd(`Scaffold a new migration unit file`, execCreate)
		cmd.flags.StringVar(&cmd.name, "name", "", "Short name for the migration, e.g. create_users_index")
		cmd.flags.StringVar(&cmd.desc, "desc", "", "Human readable description")
		return cmd, nil
	}
}

func execCreate(ctx context.Context, c *Cmd, svc migratesvc.Service) error {
	out, err := svc.CreateMigration(ctx, migratesvc.InputCreateMigration{
		Name:        c.name,
		Description: c.desc,
	})
	if err != nil {
		return err
	}

	ylog.Info(ctx, "migration unit created", ylog.KV("path", out.Path))
	return printJSON(out)
}

func printJSON(data interface{}) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, string(payload))
	return err
}
