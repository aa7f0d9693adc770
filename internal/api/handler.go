package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
	"github.com/eugenenazirov/bicarb-prep/internal/metrics"
	"github.com/eugenenazirov/bicarb-prep/internal/preparation"
	"github.com/eugenenazirov/bicarb-prep/internal/report"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const maxRequestBody = 1 << 16

// AssetCache reports the state of the offline asset cache for health checks.
type AssetCache interface {
	Name() string
	InstalledAt() time.Time
}

// Handler wires the preparation planner into HTTP handlers.
type Handler struct {
	planner     *preparation.Planner
	rates       calculator.Rates
	defaultLang language.Tag
	cache       AssetCache
	logger      *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithRates sets the rates used when a request carries no overrides.
func WithRates(rates calculator.Rates) HandlerOption {
	return func(h *Handler) {
		h.rates = rates
	}
}

// WithDefaultLanguage sets the language used when the request expresses no preference.
func WithDefaultLanguage(code string) HandlerOption {
	return func(h *Handler) {
		h.defaultLang = report.Parse(code)
	}
}

// WithAssetCache exposes the asset cache version in health responses.
func WithAssetCache(cache AssetCache) HandlerOption {
	return func(h *Handler) {
		h.cache = cache
	}
}

// WithHandlerLogger sets the logger used for rejected calculations.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler. A nil planner uses the default calculator.
func NewHandler(planner *preparation.Planner, opts ...HandlerOption) *Handler {
	if planner == nil {
		planner = preparation.NewPlanner(nil)
	}
	h := &Handler{
		planner:     planner,
		rates:       calculator.DefaultRates(),
		defaultLang: report.Supported[0],
		logger:      zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	if h.cache != nil {
		status := &assetCacheStatus{Name: h.cache.Name()}
		if at := h.cache.InstalledAt(); !at.IsZero() {
			status.InstalledAt = &at
		}
		resp.AssetCache = status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ratesResponse{
		LitersPerPatient: h.rates.LitersPerPatient,
		LitersPerBag:     h.rates.LitersPerBag,
		SafetyMargin:     preparation.SafetyMargin,
	})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	tag := report.Match(h.defaultLang, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))

	var req calculateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	patients, err := strconv.Atoi(req.Patients.String())
	if err != nil || patients < 1 {
		metrics.ObserveCalculation(0, calculator.ErrInvalidPatientCount)
		writeError(w, http.StatusBadRequest, "Invalid patient count", report.ErrorMessage(calculator.ErrInvalidPatientCount, tag))
		return
	}

	// Rates.Validate bounds the exponent before the planner divides.
	rates := h.rates
	if req.LitersPerPatient != nil {
		rates.LitersPerPatient = *req.LitersPerPatient
	}
	if req.LitersPerBag != nil {
		rates.LitersPerBag = *req.LitersPerBag
	}

	plan, err := h.planner.Plan(patients, rates)
	metrics.ObserveCalculation(plan.Bags, err)
	if err != nil {
		h.logger.Debug("calculation rejected",
			zap.Int("patients", patients),
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		switch {
		case errors.Is(err, calculator.ErrInvalidRates):
			writeError(w, http.StatusBadRequest, "Invalid rates", report.ErrorMessage(err, tag),
				"litersPerPatient and litersPerBag must be positive, at most 1000000, with up to 9 decimal places")
		case errors.Is(err, calculator.ErrResultOutOfRange):
			writeError(w, http.StatusBadRequest, "Result out of range", report.ErrorMessage(err, tag),
				"use a smaller patient count or larger bags")
		case errors.Is(err, calculator.ErrInvalidPatientCount):
			writeError(w, http.StatusBadRequest, "Invalid patient count", report.ErrorMessage(err, tag))
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, newCalculateResponse(plan, report.Build(plan, tag)))
}

func newCalculateResponse(plan preparation.Plan, rep report.Report) calculateResponse {
	water := waterResponse{
		SingleBag: plan.Water.SingleBag,
		Floored:   plan.Water.Floored,
	}
	if plan.Water.SingleBag {
		minLiters, maxLiters := plan.Water.MinLiters, plan.Water.MaxLiters
		water.MinLiters = &minLiters
		water.MaxLiters = &maxLiters
	} else {
		liters := plan.Water.Liters
		water.Liters = &liters
	}

	return calculateResponse{
		Patients:          plan.RequestedPatients,
		EffectivePatients: plan.EffectivePatients,
		DemandLiters:      plan.Demand,
		Bags:              plan.Bags,
		FinalVolumeLiters: plan.FinalVolume,
		Water:             water,
		Language:          rep.Language,
		Instruction:       rep.Instruction,
		Notes:             rep.Notes,
		Reminders:         rep.Reminders,
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Patients is a json.Number so fractional or absent values reach validation
// instead of failing the whole decode.
type calculateRequest struct {
	Patients         json.Number      `json:"patients"`
	LitersPerPatient *decimal.Decimal `json:"litersPerPatient,omitempty"`
	LitersPerBag     *decimal.Decimal `json:"litersPerBag,omitempty"`
}

type waterResponse struct {
	SingleBag bool             `json:"singleBag"`
	Liters    *decimal.Decimal `json:"liters,omitempty"`
	MinLiters *decimal.Decimal `json:"minLiters,omitempty"`
	MaxLiters *decimal.Decimal `json:"maxLiters,omitempty"`
	Floored   bool             `json:"floored"`
}

type calculateResponse struct {
	Patients          int             `json:"patients"`
	EffectivePatients int             `json:"effectivePatients"`
	DemandLiters      decimal.Decimal `json:"demandLiters"`
	Bags              int             `json:"bags"`
	FinalVolumeLiters decimal.Decimal `json:"finalVolumeLiters"`
	Water             waterResponse   `json:"water"`
	Language          string          `json:"language"`
	Instruction       string          `json:"instruction"`
	Notes             []string        `json:"notes,omitempty"`
	Reminders         []string        `json:"reminders"`
}

type ratesResponse struct {
	LitersPerPatient decimal.Decimal `json:"litersPerPatient"`
	LitersPerBag     decimal.Decimal `json:"litersPerBag"`
	SafetyMargin     int             `json:"safetyMargin"`
}

type assetCacheStatus struct {
	Name        string     `json:"name"`
	InstalledAt *time.Time `json:"installedAt,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	AssetCache *assetCacheStatus `json:"assetCache,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
