package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/analysis-vault/internal/application/ai"
	appsnapshots "github.com/bryanwahyu/analysis-vault/internal/application/snapshots"
	domai "github.com/bryanwahyu/analysis-vault/internal/domain/ai"
	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
	"github.com/bryanwahyu/analysis-vault/internal/middleware"
)

type Router struct {
	snapshotsSvc *appsnapshots.Service
	reviewSvc    *appai.Service
}

// NewRouter mounts the admin analysis endpoints. reviewSvc may be nil when
// no AI provider is configured.
func NewRouter(snapshotsSvc *appsnapshots.Service, reviewSvc *appai.Service, allowedOrigins []string) http.Handler {
	r := &Router{snapshotsSvc: snapshotsSvc, reviewSvc: reviewSvc}
	mux := chi.NewRouter()

	if len(allowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
		}))
	}

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/admin", func(rt chi.Router) {
		rt.Get("/analysis", r.wrap(r.handleListAnalysis))
		rt.Post("/analysis", r.wrap(r.handleCreateAnalysis))
		rt.Delete("/analysis", r.wrap(r.handleClear))
		rt.Get("/analysis/{id}", r.wrap(r.handleGetAnalysis))
		rt.Post("/analysis/{id}/review", r.wrap(r.handleReview))
		rt.Get("/state", r.wrap(r.handleExportState))
		rt.Post("/state", r.wrap(r.handleImportState))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks transport-level decode/parse failures.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var bad *badRequestError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &bad):
			writeError(w, http.StatusBadRequest, bad.msg)
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			log.Printf("unhandled server error: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type itemBody struct {
	Label   string         `json:"label"`
	Score   *int           `json:"score"`
	Payload map[string]any `json:"payload"`
}

type analysisBody struct {
	SnapshotID *int64      `json:"snapshot_id"`
	Author     string      `json:"author"`
	Title      string      `json:"title"`
	Notes      *string     `json:"notes"`
	Items      *[]itemBody `json:"items"`
}

// POST /admin/analysis
func (r *Router) handleCreateAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body analysisBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("Invalid JSON body")
	}
	if body.SnapshotID == nil {
		return badRequest("snapshot_id is required")
	}
	if body.Items == nil {
		return badRequest("items is required")
	}

	in := domain.NewAnalysis{
		SnapshotID: *body.SnapshotID,
		Author:     body.Author,
		Title:      body.Title,
		Notes:      body.Notes,
		Items:      make([]domain.NewItem, 0, len(*body.Items)),
	}
	for i, item := range *body.Items {
		if item.Score == nil {
			return badRequest("items[%d].score must be an integer", i)
		}
		in.Items = append(in.Items, domain.NewItem{
			Label:   item.Label,
			Score:   *item.Score,
			Payload: item.Payload,
		})
	}

	created, err := r.snapshotsSvc.SaveAnalysis(req.Context(), in)
	if err != nil {
		return err
	}
	middleware.IncrementAnalysesCreated()
	return writeJSON(w, http.StatusCreated, created)
}

// GET /admin/analysis?snapshot_id=
func (r *Router) handleListAnalysis(w http.ResponseWriter, req *http.Request) error {
	var snapshotID *int64
	if raw := req.URL.Query().Get("snapshot_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest("snapshot_id must be an integer")
		}
		snapshotID = &parsed
	}

	list, err := r.snapshotsSvc.ListSnapshotAnalysis(req.Context(), snapshotID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Analysis{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /admin/analysis/{id}
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	record, err := r.snapshotsSvc.GetAnalysis(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, record)
}

// POST /admin/analysis/{id}/review
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	if r.reviewSvc == nil {
		return writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "review assistant not configured"})
	}
	id, err := parseID(req)
	if err != nil {
		return err
	}
	record, err := r.snapshotsSvc.GetAnalysis(req.Context(), id)
	if err != nil {
		return err
	}
	review, err := r.reviewSvc.Review(req.Context(), record)
	if err != nil {
		return err
	}
	// The provider runs in JSON mode, but never trust it blindly.
	var reviewBody any = review
	if json.Valid([]byte(review)) {
		reviewBody = json.RawMessage(review)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id": record.ID,
		"review":      reviewBody,
	})
}

// DELETE /admin/analysis
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	if err := r.snapshotsSvc.Clear(req.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /admin/state
func (r *Router) handleExportState(w http.ResponseWriter, req *http.Request) error {
	state, err := r.snapshotsSvc.ExportState(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, state)
}

// POST /admin/state
func (r *Router) handleImportState(w http.ResponseWriter, req *http.Request) error {
	var state domain.State
	if err := json.NewDecoder(req.Body).Decode(&state); err != nil {
		return badRequest("Invalid JSON body")
	}
	if err := r.snapshotsSvc.ImportState(req.Context(), &state); err != nil {
		return err
	}
	middleware.IncrementStateImports()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func parseID(req *http.Request) (domain.AnalysisID, error) {
	raw := chi.URLParam(req, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest("id must be a positive integer")
	}
	return domain.AnalysisID(id), nil
}
