package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/hypnosonore/internal/gesture"
	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/store"
	"github.com/ayusman/hypnosonore/internal/trigger"
)

// BindingReloader pushes stored bindings to the running dispatcher.
type BindingReloader interface {
	LoadBindings(ctx context.Context) error
}

// BindingHandler handles HTTP requests for binding resources.
type BindingHandler struct {
	store  *store.Store
	reload BindingReloader
}

// NewBindingHandler creates a BindingHandler. reload may be nil.
func NewBindingHandler(s *store.Store, reload BindingReloader) *BindingHandler {
	return &BindingHandler{store: s, reload: reload}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/bindings"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type bindingRequest struct {
	PatternID string          `json:"pattern_id"`
	Kind      string          `json:"kind"`
	Target    string          `json:"target"`
	Action    string          `json:"action"`
	Config    json.RawMessage `json:"config"`
	Enabled   *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID        string          `json:"id"`
	PatternID string          `json:"pattern_id"`
	Kind      string          `json:"kind"`
	Target    string          `json:"target"`
	Action    string          `json:"action,omitempty"`
	Config    json.RawMessage `json:"config"`
	Enabled   bool            `json:"enabled"`
	CreatedAt string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:        b.ID,
		PatternID: b.PatternID,
		Kind:      b.Kind,
		Target:    b.Target,
		Action:    b.Action,
		Config:    config,
		Enabled:   b.Enabled,
		CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// validateBinding checks that a binding can be dispatched.
func validateBinding(b *store.Binding) error {
	switch b.PatternID {
	case gesture.PatternNod, gesture.PatternTurn, gesture.PatternSmile:
	case "":
		return errors.New("pattern_id is required")
	default:
		return fmt.Errorf("unknown pattern %q", b.PatternID)
	}
	if b.Target == "" {
		return errors.New("target is required")
	}

	switch trigger.Kind(b.Kind) {
	case trigger.KindSample:
		if _, err := strconv.Atoi(b.Target); err != nil {
			return fmt.Errorf("sample target must be a slot number, got %q", b.Target)
		}
	case trigger.KindOSC:
		if !strings.HasPrefix(b.Target, "/") {
			return fmt.Errorf("osc target must be an address starting with /, got %q", b.Target)
		}
	case trigger.KindPlugin:
		if b.Action == "" {
			return errors.New("plugin bindings need an action")
		}
	case "":
		return errors.New("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", b.Kind)
	}

	if len(b.Config) > 0 && !json.Valid(b.Config) {
		return errors.New("config must be valid JSON")
	}
	return nil
}

func (h *BindingHandler) reloaded(r *http.Request) {
	if h.reload == nil {
		return
	}
	if err := h.reload.LoadBindings(r.Context()); err != nil {
		log.Component("api").Warn("reloading bindings", log.Err(err))
	}
}

// list handles GET /api/bindings. ?pattern= filters by pattern.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		bindings []*store.Binding
		err      error
	)
	if pattern := r.URL.Query().Get("pattern"); pattern != "" {
		bindings, err = h.store.Bindings().ListByPattern(pattern)
	} else {
		bindings, err = h.store.Bindings().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	b := &store.Binding{
		PatternID: req.PatternID,
		Kind:      req.Kind,
		Target:    req.Target,
		Action:    req.Action,
		Config:    req.Config,
		Enabled:   true,
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if err := validateBinding(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	h.reloaded(r)
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}. Omitted fields keep their value.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PatternID != "" {
		b.PatternID = req.PatternID
	}
	if req.Kind != "" {
		b.Kind = req.Kind
	}
	if req.Target != "" {
		b.Target = req.Target
	}
	if req.Action != "" {
		b.Action = req.Action
	}
	if req.Config != nil {
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if err := validateBinding(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}
	h.reloaded(r)
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	h.reloaded(r)
	w.WriteHeader(http.StatusNoContent)
}
