package restapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/pkg/tracer"
	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"github.com/yusufsyaifudin/boyong/transport/restapi/handlermigrate"
	"go.opentelemetry.io/otel"
)

type Config struct {
	AppServiceName string             `validate:"required"`
	AppVersion     string             `validate:"required"`
	MigrateService migratesvc.Service `validate:"required"`
}

type DefaultHTTP struct {
	router *chi.Mux
}

func NewHTTPTransport(cfg Config) (*DefaultHTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("http transport cfg error: %w", err)
	}

	handlerMigrateCfg := handlermigrate.HandlerConfig{
		MigrateService: cfg.MigrateService,
	}

	handlerMigrate, err := handlermigrate.NewHandler(handlerMigrateCfg)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	skip := func(r *http.Request) bool {
		switch strings.TrimSpace(path.Clean(r.URL.Path)) {
		case "/health",
			"/ping":
			return true
		}

		return false
	}

	router.Use(middleware.StripSlashes)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	router.Use(func(next http.Handler) http.Handler {
		return tracer.Middleware(tracer.MiddlewareConfig{
			TracerName:     "github.com/yusufsyaifudin/boyong",
			ServiceName:    cfg.AppServiceName,
			SkipFunc:       skip,
			TracerProvider: otel.GetTracerProvider(),    // global tracer provider
			TextPropagator: otel.GetTextMapPropagator(), // use global text map propagator
		}, next)
	})

	// add trace id and also log request response
	router.Use(func(next http.Handler) http.Handler {
		return requestLogger(skip, next)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(`{"service":%q,"version":%q}`, cfg.AppServiceName, cfg.AppVersion)))
	})

	// Resource: migrations
	router.Route("/api/v1/migrations", func(r chi.Router) {
		r.Get("/status", handlerMigrate.Status())     // catalog vs applied set
		r.Get("/validate", handlerMigrate.Validate()) // drift report, read only
		r.Post("/migrate", handlerMigrate.Migrate())  // apply pending, optional target
		r.Post("/rollback", handlerMigrate.Rollback())
	})

	instance := &DefaultHTTP{
		router: router,
	}

	return instance, nil
}

func (a *DefaultHTTP) Server() http.Handler {
	return a.router
}
