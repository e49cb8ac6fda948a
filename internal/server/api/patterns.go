package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/hypnosonore/internal/gesture"
)

// PatternService is the part of the running session the pattern endpoints use.
type PatternService interface {
	Patterns() []gesture.PatternState
	Thresholds() gesture.Thresholds
	SetThresholds(ctx context.Context, t gesture.Thresholds) error
}

// PatternHandler serves pattern states, thresholds and calibration.
//
//	GET  /api/patterns
//	GET  /api/patterns/thresholds
//	PUT  /api/patterns/thresholds
//	POST /api/patterns/{id}/calibrate
type PatternHandler struct {
	svc        PatternService
	calibrator *gesture.Calibrator
}

// NewPatternHandler creates a PatternHandler.
func NewPatternHandler(svc PatternService) *PatternHandler {
	return &PatternHandler{svc: svc, calibrator: gesture.NewCalibrator()}
}

type listPatternsResponse struct {
	Patterns   []gesture.PatternState `json:"patterns"`
	Thresholds gesture.Thresholds     `json:"thresholds"`
}

type calibrateRequest struct {
	Rest  []gesture.Metrics `json:"rest"`
	Held  []gesture.Metrics `json:"held"`
	Apply bool              `json:"apply"`
}

type calibrateResponse struct {
	Thresholds gesture.Thresholds `json:"thresholds"`
	Rest       gesture.Summary    `json:"rest"`
	Held       gesture.Summary    `json:"held"`
	Applied    bool               `json:"applied"`
}

// ServeHTTP routes pattern requests.
func (h *PatternHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/patterns"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, listPatternsResponse{
			Patterns:   h.svc.Patterns(),
			Thresholds: h.svc.Thresholds(),
		})

	case path == "thresholds":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.svc.Thresholds())
		case http.MethodPut:
			h.putThresholds(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "calibrate":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.calibrate(w, r, parts[0])

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *PatternHandler) putThresholds(w http.ResponseWriter, r *http.Request) {
	t := h.svc.Thresholds()
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetThresholds(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to apply thresholds")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Thresholds())
}

func (h *PatternHandler) calibrate(w http.ResponseWriter, r *http.Request, id string) {
	var req calibrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	t, err := h.calibrator.Calibrate(id, h.svc.Thresholds(), req.Rest, req.Held)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gesture.ErrNotSeparable) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := calibrateResponse{
		Thresholds: t,
		Rest:       gesture.Summarize(req.Rest),
		Held:       gesture.Summarize(req.Held),
	}
	if req.Apply {
		if err := h.svc.SetThresholds(r.Context(), t); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to apply thresholds")
			return
		}
		resp.Applied = true
	}
	writeJSON(w, http.StatusOK, resp)
}
