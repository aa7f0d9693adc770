// Package page renders the calculator page, the browser service worker and the
// static assets.
package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
	"github.com/eugenenazirov/bicarb-prep/internal/metrics"
	"github.com/eugenenazirov/bicarb-prep/internal/preparation"
	"github.com/eugenenazirov/bicarb-prep/internal/report"
	"github.com/eugenenazirov/bicarb-prep/web"
)

// Options configures a Handler.
type Options struct {
	Rates           calculator.Rates
	DefaultLanguage string
	NoticeHTML      string
	CacheName       string
	Precache        []string
}

// Handler serves the HTML page and its companion assets.
type Handler struct {
	planner     *preparation.Planner
	rates       calculator.Rates
	defaultLang language.Tag
	notice      template.HTML
	index       *template.Template
	worker      []byte
	static      http.Handler
	logger      *zap.Logger
}

type pageData struct {
	Labels   report.Labels
	Notice   template.HTML
	Patients string
	Error    string
	Report   *report.Report
}

type workerData struct {
	CacheName string
	Precache  string
}

// NewHandler parses the embedded templates and renders the service worker once.
func NewHandler(planner *preparation.Planner, opts Options, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if planner == nil {
		planner = preparation.NewPlanner(nil)
	}

	index, err := template.ParseFS(web.Templates(), "index.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}

	worker, err := renderWorker(opts.CacheName, opts.Precache)
	if err != nil {
		return nil, err
	}

	var notice template.HTML
	if strings.TrimSpace(opts.NoticeHTML) != "" {
		// sanitized by the UGC policy before being trusted as markup
		notice = template.HTML(bluemonday.UGCPolicy().Sanitize(opts.NoticeHTML))
	}

	return &Handler{
		planner:     planner,
		rates:       opts.Rates,
		defaultLang: report.Parse(opts.DefaultLanguage),
		notice:      notice,
		index:       index,
		worker:      worker,
		static:      http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))),
		logger:      logger,
	}, nil
}

func renderWorker(cacheName string, precache []string) ([]byte, error) {
	tpl, err := texttemplate.ParseFS(web.Templates(), "sw.js.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse worker template: %w", err)
	}

	name, err := json.Marshal(cacheName)
	if err != nil {
		return nil, fmt.Errorf("encode cache name: %w", err)
	}
	if precache == nil {
		precache = []string{}
	}
	paths, err := json.Marshal(precache)
	if err != nil {
		return nil, fmt.Errorf("encode precache list: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, workerData{CacheName: string(name), Precache: string(paths)}); err != nil {
		return nil, fmt.Errorf("render worker: %w", err)
	}
	return buf.Bytes(), nil
}

// ServeIndex renders the form and, when a patients query parameter is present,
// the calculation result or the validation error.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if !isIndexPath(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	tag := report.Match(h.defaultLang, query.Get("lang"), r.Header.Get("Accept-Language"))

	data := pageData{
		Labels: report.PageLabels(tag),
		Notice: h.notice,
	}
	status := http.StatusOK

	if raw, ok := query["patients"]; ok {
		input := ""
		if len(raw) > 0 {
			input = strings.TrimSpace(raw[0])
		}
		data.Patients = input

		plan, err := h.plan(input)
		if err != nil {
			data.Error = report.ErrorMessage(err, tag)
			status = http.StatusBadRequest
			h.logger.Debug("rejected page calculation", zap.String("input", input), zap.Error(err))
		} else {
			rep := report.Build(plan, tag)
			data.Report = &rep
		}
	}

	var buf bytes.Buffer
	if err := h.index.ExecuteTemplate(&buf, "index", data); err != nil {
		h.logger.Error("render index", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", tag.String())
	w.Header().Set("Vary", "Accept-Language")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// VariesFromDefault reports whether r asks for the page in a language other than
// the default one. Only the default rendering of the page is cached.
func (h *Handler) VariesFromDefault(r *http.Request) bool {
	if !isIndexPath(r.URL.Path) {
		return false
	}
	return report.Match(h.defaultLang, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language")) != h.defaultLang
}

func isIndexPath(path string) bool {
	return path == "/" || path == "/index.html"
}

// plan parses the raw field and rejects anything below one real patient before
// the preparation policy runs.
func (h *Handler) plan(input string) (preparation.Plan, error) {
	patients, err := strconv.Atoi(input)
	if err != nil || patients < 1 {
		metrics.ObserveCalculation(0, calculator.ErrInvalidPatientCount)
		return preparation.Plan{}, calculator.ErrInvalidPatientCount
	}

	plan, err := h.planner.Plan(patients, h.rates)
	metrics.ObserveCalculation(plan.Bags, err)
	return plan, err
}

// ServeWorker serves the browser service worker script.
func (h *Handler) ServeWorker(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(h.worker)
}

// ServeStatic serves files under /static/.
func (h *Handler) ServeStatic(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}
