package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"mpgserve/ml"
	"mpgserve/monitoring"
	"mpgserve/render"
)

// ModelState is the read side of ml.ModelStore used by the handlers.
type ModelState interface {
	IsLoaded() bool
	Get() (ml.ModelParameters, error)
}

// Handlers serves the prediction endpoints. All fields are required except
// Metrics and Log.
type Handlers struct {
	Model    ModelState
	Service  *ml.PredictionService
	Renderer *render.Renderer
	Metrics  *monitoring.PredictionMetrics
	Log      *zap.Logger
	// AllowedOrigins is checked on websocket upgrades.
	AllowedOrigins []string
}

func (h *Handlers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /about", h.handleAbout)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("POST /predict", h.handlePredictForm)
	mux.HandleFunc("POST /api/predict", h.handlePredictAPI)
	mux.HandleFunc("GET /ws/predict", h.handlePredictWS)
}

func (h *Handlers) pageData(title string) render.PageData {
	data := render.PageData{
		Title:       title,
		Lang:        h.Service.Messages().Language(),
		ModelLoaded: h.Model.IsLoaded(),
		MaxWeight:   int(ml.MaxWeight),
	}
	if params, err := h.Model.Get(); err == nil {
		data.Intercept = params.Intercept
		data.Coefficient = params.Coefficient
	}
	return data
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "index", h.pageData("MPG Predictor"))
}

func (h *Handlers) handleAbout(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "about", h.pageData("About"))
}

func (h *Handlers) renderPage(w http.ResponseWriter, r *http.Request, name string, data render.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Renderer.Page(w, name, data); err != nil {
		h.logger().Error("render page failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("page", name),
			zap.Error(err))
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", ModelLoaded: h.Model.IsLoaded()}
	if !resp.ModelLoaded {
		resp.Status = "unhealthy"
	}
	h.respondJSON(w, r, resp)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		http.Error(w, `{"error":"metrics disabled"}`, http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(h.Metrics.Collector().ExportPrometheus()))
		return
	}
	h.respondJSON(w, r, h.Metrics.Snapshot())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger().Error("failed to encode JSON",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}
