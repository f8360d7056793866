package server

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/cli"
	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/boyong/config"
	"github.com/yusufsyaifudin/boyong/container"
	"github.com/yusufsyaifudin/boyong/pkg/tracer"
	"github.com/yusufsyaifudin/boyong/transport/restapi"
	"github.com/yusufsyaifudin/ylog"
	jaegerPropagator "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/contrib/propagators/ot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	ExitSuccess = 0
	ExitErr     = -1
)

// Cmd runs the admin HTTP transport so migrations can be inspected and
// triggered remotely, e.g. from a deploy pipeline.
type Cmd struct {
	flags      *flag.FlagSet
	appName    string
	appVersion string
	configFile string
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			flags:      flag.NewFlagSet("", flag.ContinueOnError),
			appName:    appName,
			appVersion: appVersion,
		}

		cmd.flags.StringVar(&cmd.configFile, "config", "config.yml", "Config file to load")
		cmd.flags.StringVar(&cmd.configFile, "c", "config.yml", "Alias for config file to load")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd("", "")

func (c *Cmd) Help() string {
	return `Start the admin HTTP server exposing migration operations`
}

func (c *Cmd) Synopsis() string {
	return `Start the admin HTTP server exposing migration operations`
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

	ctx := setupLog(context.Background(), zapLog)

	if !configVal.Tracing.Disable {
		endpoint := configVal.Tracing.JaegerEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:14268/api/traces"
		}

		exp, _err := jaeger.New(
			jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
		)
		if _err != nil {
			ylog.Error(ctx, "cannot setup jaeger exporter", ylog.KV("error", _err))
			return ExitErr
		}

		tracer.InitTraceProvider(exp)

		// register ot propagator
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			&ot.OT{},
			&jaegerPropagator.Jaeger{},
		))
	}

	// ** setup repositories
	ylog.Info(ctx, "container preparation: starting")
	var repositories container.Repositories
	repositories, err = container.SetupRepositories(ctx, configVal.MongoDB, configVal.Migration)
	defer func() {
		ylog.Info(ctx, "closing container: starting")
		if repositories == nil {
			ylog.Info(ctx, "closing container: no need to close")
			return
		}

		if _err := repositories.Close(); _err != nil {
			ylog.Error(ctx, "closing container: failed", ylog.KV("error", _err))
		}

		ylog.Info(ctx, "closing container: done")
	}()

	if err != nil {
		ylog.Error(ctx, "container preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	ylog.Info(ctx, "container preparation: done")

	// ** START SERVICES using configured repositories
	ylog.Info(ctx, "services preparation: starting")
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

	// ** HTTP TRANSPORT
	ylog.Info(ctx, "http transport: starting")
	server, err := restapi.NewHTTPTransport(restapi.Config{
		AppServiceName: c.appName,
		AppVersion:     c.appVersion,
		MigrateService: migrateSvc,
	})
	if err != nil {
		ylog.Error(ctx, "http transport: failed", ylog.KV("error", err))
		return ExitErr
	}

	httpPort := fmt.Sprintf(":%d", configVal.Transport.HTTP.Port)
	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:    httpPort,
		Handler: h2c.NewHandler(server.Server(), h2s), // HTTP/2 Cleartext handler
	}

	var apiErrChan = make(chan error, 1)
	go func() {
		ylog.Info(ctx, fmt.Sprintf("http transport: done running on port %d", configVal.Transport.HTTP.Port))
		apiErrChan <- httpServer.ListenAndServe()
	}()

	ylog.Info(ctx, "system: up and running...")

	// ** listen for sigterm signal
	var signalChan = make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signalChan:
		ylog.Info(ctx, "system: exiting...")
		if _err := httpServer.Shutdown(ctx); _err != nil {
			ylog.Error(ctx, "http transport: shutdown error", ylog.KV("error", _err))
		}

	case err := <-apiErrChan:
		if err != nil {
			ylog.Info(ctx, "http transport: error", ylog.KV("error", err))
		}
	}

	return ExitSuccess
}

func setupLog(ctx context.Context, zapLog *zap.Logger) context.Context {
	propagateData := tracer.LogData{
		RemoteAddr: "system",
		TraceID:    uuid.NewV4().String(),
	}

	traceLog, err := ylog.NewTracer(propagateData, ylog.WithTag("tracer"))
	if err != nil {
		log.Fatalf("error prepare tracer system data: %s", err)
		return ctx
	}

	// inject context
	ctx = ylog.Inject(ctx, traceLog)

	// ** set global logger
	ylog.SetGlobalLogger(ylog.NewZap(zapLog))

	return ctx
}
