// Package httpapi implements §6's external HTTP interfaces on top of
// go-chi/chi, following the App-struct-plus-json-helper handler shape from
// the teacher pack's chi-based repo (Leavend-umkm_saas/server/internal/http
// /handlers: App, (*App).json).
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/dispatcher"
	"github.com/yourorg/imageforge/internal/pipeline"
	"github.com/yourorg/imageforge/internal/store"
)

// App holds every collaborator the HTTP handlers need.
type App struct {
	Store      *store.Gateway
	Dispatcher *dispatcher.Dispatcher
	Pipeline   *pipeline.Pipeline
	Config     config.Config
	Logger     *slog.Logger
}

func NewRouter(a *App) http.Handler {
	r := chi.NewRouter()
	accessLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, accessLog(accessLogger))

	r.Get("/healthz", a.Healthz)

	r.Route("/admin/jobs", func(r chi.Router) {
		r.Post("/", a.SubmitJob)
		r.Get("/{id}", a.GetJobDetail)
		r.Get("/{id}/status", a.GetJobStatus)
		r.Post("/{id}/cancel", a.CancelJob)
	})

	r.Post("/admin/worker/process-task", a.ProcessTask)

	return r
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (a *App) errorResponse(w http.ResponseWriter, code int, detail string) {
	a.json(w, code, errorBody{Detail: detail})
}

func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Pool.Ping(r.Context()); err != nil {
		a.errorResponse(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
