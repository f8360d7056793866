package handlermigrate

import (
	"errors"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/pkg/respbuilder"
	"github.com/yusufsyaifudin/boyong/pkg/tracer"
	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type HandlerConfig struct {
	MigrateService migratesvc.Service `validate:"required"`
}

type Handler struct {
	Config       HandlerConfig
	queryDecoder *schema.Decoder
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	err := validator.Validate(cfg)
	if err != nil {
		return nil, err
	}

	queryDecoder := schema.NewDecoder()
	queryDecoder.IgnoreUnknownKeys(true)

	return &Handler{
		Config:       cfg,
		queryDecoder: queryDecoder,
	}, nil
}

type MigrateReq struct {
	TargetVersion string `json:"target_version"`
}

func (h *Handler) Migrate() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlermigrate.Migrate")
		defer span.End()

		var reqBody MigrateReq
		if r.Body != nil && r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			err := dec.Decode(&reqBody)
			if err != nil {
				resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
				respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
				return
			}
		}

		migrateOut, migrateErr := h.Config.MigrateService.Migrate(ctx, migratesvc.InputMigrate{
			TargetVersion: reqBody.TargetVersion,
		})
		if migrateErr != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrExecutionFailure, migrateErr)
			respbuilder.WriteJSON(http.StatusInternalServerError, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, migrateOut)
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type RollbackReq struct {
	TargetVersion string `schema:"target_version"`
	Steps         int    `schema:"steps"`
}

func (h *Handler) Rollback() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlermigrate.Rollback")
		defer span.End()

		var reqQuery RollbackReq
		err := h.queryDecoder.Decode(&reqQuery, r.URL.Query())
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		rollbackOut, rollbackErr := h.Config.MigrateService.Rollback(ctx, migratesvc.InputRollback{
			TargetVersion: reqQuery.TargetVersion,
			Steps:         reqQuery.Steps,
		})
		if rollbackErr != nil {
			if errors.Is(rollbackErr, migratesvc.ErrTargetNotFound) {
				resp := respbuilder.Error(ctx, respbuilder.ErrTargetNotFound, rollbackErr)
				respbuilder.WriteJSON(http.StatusNotFound, w, r, resp)
				return
			}

			resp := respbuilder.Error(ctx, respbuilder.ErrExecutionFailure, rollbackErr)
			respbuilder.WriteJSON(http.StatusInternalServerError, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, rollbackOut)
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

func (h *Handler) Status() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlermigrate.Status")
		defer span.End()

		statusOut, statusErr := h.Config.MigrateService.Status(ctx)
		if statusErr != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrUnhandled, statusErr)
			respbuilder.WriteJSON(http.StatusInternalServerError, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, statusOut)
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

func (h *Handler) Validate() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlermigrate.Validate")
		defer span.End()

		validateOut, validateErr := h.Config.MigrateService.Validate(ctx)
		if validateErr != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrUnhandled, validateErr)
			respbuilder.WriteJSON(http.StatusInternalServerError, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, validateOut)
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}
