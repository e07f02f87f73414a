package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"mpgserve/ml"
	"mpgserve/render"
)

const (
	endpointForm = "form"
	endpointAPI  = "api"
	endpointWS   = "ws"

	maxFormMemory = 1 << 16
)

type formSuccess struct {
	ID      string  `json:"id,omitempty"`
	Success bool    `json:"success"`
	Weight  float64 `json:"weight"`
	MPG     float64 `json:"predicted_mpg"`
	// Interpretation is the localised label; Band is its stable key.
	Interpretation string       `json:"interpretation"`
	Band           string       `json:"band"`
	Color          string       `json:"color"`
	ModelInfo      ml.ModelInfo `json:"model_info"`
}

type apiSuccess struct {
	Success   bool         `json:"success"`
	Weight    float64      `json:"weight"`
	MPG       float64      `json:"predicted_mpg"`
	ModelInfo ml.ModelInfo `json:"model_info"`
}

type failure struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

func newFormSuccess(res *ml.PredictionResult) formSuccess {
	return formSuccess{
		Success:        true,
		Weight:         res.Weight,
		MPG:            res.PredictedMPG,
		Interpretation: res.Label,
		Band:           res.Interpretation.String(),
		Color:          res.Interpretation.Color(),
		ModelInfo:      res.ModelInfo,
	}
}

func newFailure(err error) failure {
	var perr *ml.PredictionError
	if errors.As(err, &perr) {
		return failure{Error: perr.Message, Kind: perr.Kind.String()}
	}
	return failure{Error: "internal error", Kind: ml.KindInternal.String()}
}

// handlePredictForm serves the browser form: full validation and banding.
func (h *Handlers) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var (
		res *ml.PredictionResult
		err error
	)
	if raw, perr := formWeight(r); perr != nil {
		err = h.Service.InvalidInput(perr)
	} else {
		res, err = h.Service.Predict(raw)
	}
	h.observe(r, endpointForm, start, err)

	if wantsHTML(r) {
		h.writeFragment(w, r, res, err)
		return
	}
	if err != nil {
		h.respondJSON(w, r, newFailure(err))
		return
	}
	h.respondJSON(w, r, newFormSuccess(res))
}

// formWeight returns the raw weight field, or nil when the field is absent.
func formWeight(r *http.Request) (interface{}, error) {
	ct := r.Header.Get("Content-Type")
	var err error
	if strings.HasPrefix(ct, "multipart/form-data") {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	values, ok := r.PostForm["weight"]
	if !ok || len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

func (h *Handlers) writeFragment(w http.ResponseWriter, r *http.Request, res *ml.PredictionResult, err error) {
	var (
		out     []byte
		rendErr error
	)
	if err != nil {
		out, rendErr = h.Renderer.Error(render.ErrorView{Error: newFailure(err).Error})
	} else {
		key := h.Service.Messages().Language() + "|" + strconv.FormatFloat(res.Weight, 'g', -1, 64)
		out, rendErr = h.Renderer.Result(key, render.ResultView{
			Weight:       res.Weight,
			PredictedMPG: res.PredictedMPG,
			Label:        res.Label,
			Color:        res.Interpretation.Color(),
			Intercept:    res.ModelInfo.Intercept,
			Coefficient:  res.ModelInfo.Coefficient,
		})
	}
	if rendErr != nil {
		panic(fmt.Errorf("render fragment: %w", rendErr))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(out)
}

type apiRequest struct {
	Weight interface{} `json:"weight"`
}

// handlePredictAPI serves JSON clients with the reduced contract.
func (h *Handlers) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var (
		res *ml.RawPrediction
		err error
	)
	var req apiRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if derr := dec.Decode(&req); derr != nil {
		err = h.Service.InvalidInput(fmt.Errorf("decode body: %w", derr))
	} else {
		res, err = h.Service.PredictRaw(req.Weight)
	}
	h.observe(r, endpointAPI, start, err)

	if err != nil {
		h.respondJSON(w, r, newFailure(err))
		return
	}
	h.respondJSON(w, r, apiSuccess{
		Success:   true,
		Weight:    res.Weight,
		MPG:       res.PredictedMPG,
		ModelInfo: res.ModelInfo,
	})
}

// observe records metrics and logs failures by severity: user mistakes at
// debug, a missing model at warn, anything else at error.
func (h *Handlers) observe(r *http.Request, endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		kind := ml.KindOf(err)
		outcome = kind.String()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("endpoint", endpoint),
			zap.String("kind", outcome),
		}
		switch {
		case kind.UserCorrectable():
			h.logger().Debug("prediction rejected", append(fields, zap.Error(err))...)
		case kind == ml.KindModelUnavailable:
			h.logger().Warn("prediction unavailable, model not loaded", fields...)
		default:
			h.logger().Error("prediction failed", append(fields, zap.Error(err))...)
		}
	}
	if h.Metrics != nil {
		h.Metrics.RecordPrediction(endpoint, outcome, time.Since(start))
	}
}

// wantsHTML reports whether the client prefers an HTML fragment over JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
