package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotaudit/internal/config"
	apierrors "ballotaudit/internal/errors"
	"ballotaudit/internal/exporter"
	"ballotaudit/internal/ingest"
	"ballotaudit/internal/middleware"
	"ballotaudit/internal/services"
	"ballotaudit/internal/shared/testutil"
	"ballotaudit/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingService wraps the real service and keeps the last request.
type recordingService struct {
	*services.AuditService
	last services.AuditRequest
	err  error
}

func (s *recordingService) Run(ctx context.Context, req services.AuditRequest) (*services.AuditResult, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.AuditService.Run(ctx, req)
}

func newTestRouter(svc AuditServiceInterface) chi.Router {
	logger := quietLogger()
	errHandler := apierrors.NewErrorHandler(logger, false)
	h := NewAuditHandler(svc, AuditDefaults{
		Policy: config.DefaultAudit(),
		TopN:   10,
	}, middleware.NewValidator(logger), logger, errHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/api/policy", h.GetPolicy)
	r.With(middleware.MaxBodySize(1<<20)).Post("/api/audits", h.CreateAudit)
	return r
}

func newRecordingService() *recordingService {
	return &recordingService{AuditService: services.NewAuditService(exporter.NewPseudonymizer("pepper"), quietLogger())}
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/audits", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formVotes() string {
	return testutil.FormCSV(
		testutil.FormRow{Timestamp: "19/12/2024 10:00:00", Email: "ana.silva@gmail.com", Choice: "Noel A"},
		testutil.FormRow{Timestamp: "19/12/2024 10:00:01", Email: "ana.silva@gmail.com", Choice: "Noel B"},
		testutil.FormRow{Timestamp: "19/12/2024 11:00:00", Email: "bob@outlook.com", Choice: "Noel B"},
		testutil.FormRow{Timestamp: "20/12/2024 12:00:00", Email: "carl@gmail.com", Choice: "Noel B"},
	)
}

func TestCreateAudit(t *testing.T) {
	svc := newRecordingService()
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "votes.csv", formVotes(), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Audit-ID"))
	assert.NotContains(t, rec.Body.String(), "ana.silva@gmail.com")

	var report exporter.PublicReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, exporter.ReportTitle, report.Title)
	assert.Equal(t, "votes.csv", report.Source)
	assert.Equal(t, 4, report.SourceRows)
	assert.Equal(t, domain.ScenarioOrganizer, report.Scenario)
	assert.Equal(t, 2, report.Ranking.Total)
	assert.Equal(t, []int{20, 21, 22}, report.Rules.ExcludedDays)
}

func TestCreateAuditOverrides(t *testing.T) {
	svc := newRecordingService()
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "votes.csv", formVotes(), map[string]string{
		"excluded_days":    "",
		"min_global_delta": "0.5",
		"night_start":      "22",
		"night_end":        "6",
		"z_threshold":      "2",
		"scenario":         "b",
		"top":              "1",
		"focus":            "Noel B",
		"timezone":         "America/Sao_Paulo",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := svc.last
	assert.Empty(t, req.Policy.ExcludedDays())
	assert.Equal(t, 0.5, req.Policy.MinGlobalDelta())
	assert.Equal(t, config.DefaultMinPerChoiceDelta, req.Policy.MinPerChoiceDelta())
	start, end := req.Policy.NightHours()
	assert.Equal(t, 22, start)
	assert.Equal(t, 6, end)
	assert.Equal(t, 2.0, req.Policy.OutlierThreshold())
	assert.Equal(t, domain.ScenarioAntiBot, req.Scenario)
	assert.Equal(t, 1, req.TopN)
	assert.Equal(t, "Noel B", req.FocusChoice)
	assert.Equal(t, "America/Sao_Paulo", req.Location.String())

	var report exporter.PublicReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Ranking.Choices, 1)
	assert.Empty(t, report.Rules.ExcludedDays)
}

func TestCreateAuditErrors(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    string
		fields     map[string]string
		serviceErr error
		wantStatus int
		wantType   string
	}{
		{
			name:       "missing file",
			fields:     map[string]string{"scenario": "A"},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "bad number",
			filename:   "votes.csv",
			content:    formVotes(),
			fields:     map[string]string{"min_global_delta": "fast"},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "out of range",
			filename:   "votes.csv",
			content:    formVotes(),
			fields:     map[string]string{"night_start": "25", "scenario": "Z"},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "bad day list",
			filename:   "votes.csv",
			content:    formVotes(),
			fields:     map[string]string{"excluded_days": "20,abc"},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "unknown columns",
			filename:   "votes.csv",
			content:    "a,b\n1,2\n",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apierrors.TypeSchema,
		},
		{
			name:       "storage failure hides details",
			filename:   "votes.csv",
			content:    formVotes(),
			serviceErr: apierrors.NewStorageError("disk full", errors.New("/secret/path")),
			wantStatus: http.StatusInternalServerError,
			wantType:   apierrors.TypeStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newRecordingService()
			svc.err = tt.serviceErr
			router := newTestRouter(svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tt.filename, tt.content, tt.fields))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem["type"])
			assert.NotEmpty(t, problem["trace_id"])
			assert.NotContains(t, rec.Body.String(), "/secret/path")
		})
	}
}

func TestCreateAuditTooLarge(t *testing.T) {
	router := newTestRouter(newRecordingService())

	big := bytes.Repeat([]byte("x"), 2<<20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "votes.csv", string(big), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetPolicy(t *testing.T) {
	router := newTestRouter(newRecordingService())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rules     config.PolicySnapshot `json:"rules"`
		Timezone  string                `json:"timezone"`
		TopN      int                   `json:"top_n"`
		Scenarios []map[string]string   `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []int{20, 21, 22}, body.Rules.ExcludedDays)
	assert.Equal(t, config.DefaultOutlierThreshold, body.Rules.OutlierThreshold)
	assert.Equal(t, "UTC", body.Timezone)
	assert.Equal(t, 10, body.TopN)
	require.Len(t, body.Scenarios, 3)
	assert.Equal(t, "A", body.Scenarios[0]["id"])
}

func TestHealthAndMetricsHandlers(t *testing.T) {
	logger := quietLogger()
	dir := t.TempDir()
	hs := services.NewHealthService(&config.Paths{BaseDir: dir, OutputDir: filepath.Join(dir, "out")}, config.SheetsConfig{}, logger)
	health := NewHealthHandler(hs, logger)
	errHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Get("/api/health", health.HealthCheck)
	r.Get("/api/health/ready", health.ReadinessCheck)
	r.Get("/api/health/live", health.LivenessCheck)
	r.Get("/api/version", health.Version)
	r.Get("/metrics", NewMetricsHandler(nil, errHandler).GetMetrics)
	r.Get("/metrics-on", NewMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audit_runs_total 0\n")
	}), errHandler).GetMetrics)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/api/health", http.StatusOK, `"status":"ok"`},
		{"/api/health/ready", http.StatusOK, `"status":"ready"`},
		{"/api/health/live", http.StatusOK, `"goroutines"`},
		{"/api/version", http.StatusOK, `"api_version"`},
		{"/metrics", http.StatusNotFound, `/errors/not-found`},
		{"/metrics-on", http.StatusOK, `audit_runs_total`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestCreateAuditCancelled(t *testing.T) {
	router := newTestRouter(newRecordingService())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "votes.csv", formVotes(), nil).WithContext(ctx))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestCreateSheetAudit(t *testing.T) {
	logger := quietLogger()
	errHandler := apierrors.NewErrorHandler(logger, false)
	svc := newRecordingService()

	newRouter := func(open SheetSourceFunc) chi.Router {
		h := NewAuditHandler(svc, AuditDefaults{Policy: config.DefaultAudit(), TopN: 10},
			middleware.NewValidator(logger), logger, errHandler)
		if open != nil {
			h.WithSheetSource(open)
		}
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Post("/api/audits/sheet", h.CreateSheetAudit)
		return r
	}

	sheetReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/audits/sheet", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("not configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(nil).ServeHTTP(rec, sheetReq(""))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("open failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(func(context.Context) (ingest.Source, error) {
			return nil, errors.New("credentials rejected")
		}).ServeHTTP(rec, sheetReq(""))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("runs with overrides", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(func(context.Context) (ingest.Source, error) {
			return ingest.NewReaderSource("Form responses", ingest.FormatCSV, strings.NewReader(formVotes()))
		}).ServeHTTP(rec, sheetReq("scenario=C&top=1"))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, domain.ScenarioStrict, svc.last.Scenario)
		assert.Equal(t, 1, svc.last.TopN)
		assert.NotContains(t, rec.Body.String(), "ana.silva@gmail.com")
	})
}
