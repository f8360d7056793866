package handlermigrate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/internal/svc/staterepo"
	"github.com/yusufsyaifudin/boyong/pkg/respbuilder"
	"github.com/yusufsyaifudin/boyong/pkg/uid"
	"github.com/yusufsyaifudin/boyong/transport/restapi/handlermigrate"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type txnPassthrough struct{}

func (txnPassthrough) Supported(_ context.Context) (bool, error) { return true, nil }
func (txnPassthrough) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type staticFingerprint struct{}

func (staticFingerprint) Fingerprint(def catalog.Definition) (string, error) {
	return "sum-" + def.Version, nil
}

func noop(_ context.Context, _ *mongo.Database) error { return nil }

func newHandler(t *testing.T) *handlermigrate.Handler {
	t.Helper()

	defs := []catalog.Definition{
		{Version: "20240101000000", Description: "users", Forward: noop, Backward: noop, Filename: "20240101000000_users.go"},
		{Version: "20240102000000", Description: "orders", Forward: noop, Backward: noop, Filename: "20240102000000_orders.go"},
	}

	cat, err := catalog.Load(catalog.SliceSource(defs))
	require.NoError(t, err)

	uidGen, err := uid.NewSonyflake()
	require.NoError(t, err)

	svc, err := migratesvc.New(migratesvc.DefaultServiceConfig{
		Catalog:       cat,
		StateRepo:     staterepo.Inmem(),
		Txn:           txnPassthrough{},
		Fingerprinter: staticFingerprint{},
		UIDGen:        uidGen,
		MigrationsDir: t.TempDir(),
	})
	require.NoError(t, err)

	h, err := handlermigrate.NewHandler(handlermigrate.HandlerConfig{
		MigrateService: svc,
	})
	require.NoError(t, err)

	return h
}

func doReq(h http.HandlerFunc, method, target string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(respbuilder.Inject(req.Context(), respbuilder.Tracer{
		RemoteAddr: req.RemoteAddr,
		AppTraceID: "test-trace-id",
	}))

	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandlerMigrate(t *testing.T) {
	t.Run("empty body applies everything", func(t *testing.T) {
		h := newHandler(t)

		rec := doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "test-trace-id", rec.Header().Get("Tracer-ID"))

		var resp struct {
			Data migratesvc.OutMigrate `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Count)
	})

	t.Run("target version in body is honored", func(t *testing.T) {
		h := newHandler(t)

		rec := doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate",
			`{"target_version":"20240101000000"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data migratesvc.OutMigrate `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Data.Count)
	})

	t.Run("unknown field is a validation error", func(t *testing.T) {
		h := newHandler(t)

		rec := doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate",
			`{"bogus":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerRollback(t *testing.T) {
	t.Run("steps from query", func(t *testing.T) {
		h := newHandler(t)
		doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate", "")

		rec := doReq(h.Rollback(), http.MethodPost, "/api/v1/migrations/rollback?steps=1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data migratesvc.OutRollback `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Data.Count)
		assert.Equal(t, "20240102000000", resp.Data.RolledBack[0].Version)
	})

	t.Run("unknown target is 404", func(t *testing.T) {
		h := newHandler(t)
		doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate", "")

		rec := doReq(h.Rollback(), http.MethodPost,
			"/api/v1/migrations/rollback?target_version=20200101000000", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp respbuilder.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "03", resp.Err.Code)
	})
}

func TestHandlerStatus(t *testing.T) {
	h := newHandler(t)
	doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate",
		`{"target_version":"20240101000000"}`)

	rec := doReq(h.Status(), http.MethodGet, "/api/v1/migrations/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data migratesvc.OutStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.AppliedCount)
	assert.Equal(t, 1, resp.Data.PendingCount)
}

func TestHandlerValidate(t *testing.T) {
	h := newHandler(t)
	doReq(h.Migrate(), http.MethodPost, "/api/v1/migrations/migrate", "")

	rec := doReq(h.Validate(), http.MethodGet, "/api/v1/migrations/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data migratesvc.OutValidate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Valid)
}
