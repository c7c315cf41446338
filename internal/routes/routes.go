package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/handlers"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/middleware"
	"github.com/autonexit/FaceShield/internal/repository"
	ws "github.com/autonexit/FaceShield/internal/services/websocket"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Controller handlers.RunController
	Runs       repository.RunRepository
	Samples    repository.SampleRepository
	Hub        *ws.HubService
	Gatherer   prometheus.Gatherer
}

// SetupRoutes registers the API, log and metrics endpoints. /api and /logs
// are guarded by the bearer token middleware.
func SetupRoutes(d Deps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	auth := middleware.AuthMiddleware(d.Config.APIToken)

	// API endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/runs", handlers.StartRunHandler(d.Controller, d.Config.Defaults, d.Config.Roots, d.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/runs", handlers.ListRunsHandler(d.Runs, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/runs/stop", handlers.StopRunHandler(d.Controller)).Methods(http.MethodPost)
	api.HandleFunc("/runs/status", handlers.RunStatusHandler(d.Controller)).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", handlers.GetRunHandler(d.Runs, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/ws", handlers.ViewWebsocketHandler(d.Hub, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/samples", handlers.ListSamplesHandler(d.Samples, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/samples/view", handlers.ViewSampleHandler(d.Config.ImageDirectory)).Methods(http.MethodGet)
	api.HandleFunc("/samples/info", handlers.SampleDetailsHandler(d.Samples, d.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/samples/clear", handlers.ClearSamplesHandler(d.Samples, d.Config.ImageDirectory, d.Logger)).Methods(http.MethodPost)

	// Log endpoints
	logs := r.PathPrefix("/logs").Subrouter()
	logs.Use(auth)
	logs.HandleFunc("/{level}", handlers.ShowLogsHandler(d.Config.LogDirectory)).Methods(http.MethodGet)
	logs.HandleFunc("/{level}/clear", handlers.ClearLogsHandler(d.Logger)).Methods(http.MethodPost)

	return r
}
