package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"ballotaudit/internal/config"
	apierrors "ballotaudit/internal/errors"
	"ballotaudit/internal/exporter"
	"ballotaudit/internal/ingest"
	"ballotaudit/internal/middleware"
	"ballotaudit/internal/services"
	"ballotaudit/pkg/contracts/domain"
)

// uploadField is the multipart field holding the vote table.
const uploadField = "file"

// multipartMemory is kept in memory before parts spill to disk.
const multipartMemory = 8 << 20

// AuditServiceInterface is the part of services.AuditService the handler
// needs.
type AuditServiceInterface interface {
	Run(ctx context.Context, req services.AuditRequest) (*services.AuditResult, error)
	PublicReport(res *services.AuditResult) *exporter.PublicReport
}

// AuditDefaults are the server-side values a request may override.
type AuditDefaults struct {
	Policy      config.AuditConfig
	Location    *time.Location
	TopN        int
	FocusChoice string
}

// SheetSourceFunc opens the configured Google Sheet.
type SheetSourceFunc func(ctx context.Context) (ingest.Source, error)

// AuditHandler runs audits on uploaded vote tables and, when configured,
// on a live Google Sheet.
type AuditHandler struct {
	service      AuditServiceInterface
	defaults     AuditDefaults
	sheet        SheetSourceFunc
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(service AuditServiceInterface, defaults AuditDefaults, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AuditHandler {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	return &AuditHandler{
		service:      service,
		defaults:     defaults,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "audit")),
		errorHandler: errorHandler,
	}
}

// WithSheetSource enables POST /api/audits/sheet.
func (h *AuditHandler) WithSheetSource(open SheetSourceFunc) *AuditHandler {
	h.sheet = open
	return h
}

// AuditForm holds the optional policy overrides of an upload. Nil pointers
// keep the server default.
type AuditForm struct {
	ExcludedDays   *string  `form:"excluded_days" validate:"omitnil,daylist"`
	MinGlobalDelta *float64 `form:"min_global_delta" validate:"omitnil,gte=0"`
	MinChoiceDelta *float64 `form:"min_choice_delta" validate:"omitnil,gte=0"`
	NightStart     *int     `form:"night_start" validate:"omitnil,gte=0,lte=23"`
	NightEnd       *int     `form:"night_end" validate:"omitnil,gte=0,lte=23"`
	ZThreshold     *float64 `form:"z_threshold" validate:"omitnil,gt=0"`
	Scenario       string   `form:"scenario" validate:"omitempty,oneof=A B C"`
	Top            *int     `form:"top" validate:"omitnil,gte=1,lte=1000"`
	Focus          string   `form:"focus" validate:"max=200"`
	Sheet          string   `form:"sheet" validate:"max=31"`
	Timezone       string   `form:"timezone" validate:"omitempty,timezone"`
}

// CreateAudit handles POST /api/audits. The body is multipart/form-data
// with the vote table in "file" and AuditForm fields beside it.
func (h *AuditHandler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, err := parseAuditForm(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(form); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(uploadField, "a vote table upload is required"))
		return
	}
	defer file.Close()

	src, err := ingest.NewReaderSource(header.Filename, ingest.FormatFromName(header.Filename), file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	src.Sheet = form.Sheet

	req := h.buildRequest(form)
	req.Source = src

	h.logger.InfoContext(ctx, "audit upload received",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.String("scenario", string(req.Scenario)))

	res, err := h.service.Run(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("X-Audit-ID", res.ID)
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", config.PublicReportName))
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.service.PublicReport(res))
}

// CreateSheetAudit handles POST /api/audits/sheet. Overrides come as
// url-encoded form fields; the sheet itself is fixed by server config.
func (h *AuditHandler) CreateSheetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sheet == nil {
		h.errorHandler.HandleError(w, r, apierrors.NewAppError(apierrors.ErrTypeNotFound, services.ErrSheetsNotConfigured.Error(), nil))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	form, err := parseAuditForm(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(form); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	src, err := h.sheet(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewSourceError("failed to open sheet", err))
		return
	}

	req := h.buildRequest(form)
	req.Source = src
	res, err := h.service.Run(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("X-Audit-ID", res.ID)
	render.JSON(w, r, h.service.PublicReport(res))
}

// GetPolicy handles GET /api/policy.
func (h *AuditHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	scenarios := make([]map[string]string, 0, len(domain.ScenarioIDs))
	for _, id := range domain.ScenarioIDs {
		scenarios = append(scenarios, map[string]string{"id": string(id), "label": id.Label()})
	}
	render.JSON(w, r, map[string]interface{}{
		"rules":        h.defaults.Policy.Snapshot(),
		"timezone":     h.defaults.Location.String(),
		"top_n":        h.defaults.TopN,
		"focus_choice": h.defaults.FocusChoice,
		"scenarios":    scenarios,
	})
}

// buildRequest layers form overrides over the server defaults.
func (h *AuditHandler) buildRequest(form *AuditForm) services.AuditRequest {
	var opts []config.AuditOption
	if form.ExcludedDays != nil {
		opts = append(opts, config.WithExcludedDays(config.ParseExcludedDays(*form.ExcludedDays)...))
	}
	if form.MinGlobalDelta != nil {
		opts = append(opts, config.WithMinGlobalDelta(*form.MinGlobalDelta))
	}
	if form.MinChoiceDelta != nil {
		opts = append(opts, config.WithMinPerChoiceDelta(*form.MinChoiceDelta))
	}
	if form.NightStart != nil || form.NightEnd != nil {
		start, end := h.defaults.Policy.NightHours()
		if form.NightStart != nil {
			start = *form.NightStart
		}
		if form.NightEnd != nil {
			end = *form.NightEnd
		}
		opts = append(opts, config.WithNightHours(start, end))
	}
	if form.ZThreshold != nil {
		opts = append(opts, config.WithOutlierThreshold(*form.ZThreshold))
	}

	req := services.AuditRequest{
		Policy:      h.defaults.Policy.With(opts...),
		Location:    h.defaults.Location,
		Scenario:    domain.ScenarioID(form.Scenario),
		TopN:        h.defaults.TopN,
		FocusChoice: h.defaults.FocusChoice,
	}
	if form.Top != nil {
		req.TopN = *form.Top
	}
	if form.Focus != "" {
		req.FocusChoice = form.Focus
	}
	if form.Timezone != "" {
		if loc, err := time.LoadLocation(form.Timezone); err == nil {
			req.Location = loc
		}
	}
	return req
}

// parseAuditForm reads the override fields. Number syntax errors are
// reported per field; range checks are left to the validator.
func parseAuditForm(r *http.Request) (*AuditForm, error) {
	form := &AuditForm{
		Scenario: strings.ToUpper(strings.TrimSpace(r.FormValue("scenario"))),
		Focus:    strings.TrimSpace(r.FormValue("focus")),
		Sheet:    strings.TrimSpace(r.FormValue("sheet")),
		Timezone: strings.TrimSpace(r.FormValue("timezone")),
	}
	if _, ok := r.Form["excluded_days"]; ok {
		days := r.FormValue("excluded_days")
		form.ExcludedDays = &days
	}

	var errs []apierrors.ValidationError
	floatField := func(name string) *float64 {
		s := strings.TrimSpace(r.FormValue(name))
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, apierrors.ValidationError{Field: name, Message: name + " must be a number"})
			return nil
		}
		return &v
	}
	intField := func(name string) *int {
		s := strings.TrimSpace(r.FormValue(name))
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, apierrors.ValidationError{Field: name, Message: name + " must be an integer"})
			return nil
		}
		return &v
	}

	form.MinGlobalDelta = floatField("min_global_delta")
	form.MinChoiceDelta = floatField("min_choice_delta")
	form.ZThreshold = floatField("z_threshold")
	form.NightStart = intField("night_start")
	form.NightEnd = intField("night_end")
	form.Top = intField("top")

	if len(errs) > 0 {
		return nil, apierrors.NewValidationErrors(errs)
	}
	return form, nil
}
