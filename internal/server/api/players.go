package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/orchestra"
	"github.com/ayusman/hypnosonore/internal/osc"
)

// Signaller answers a player's WebRTC offer.
type Signaller interface {
	Answer(ctx context.Context, offer webrtc.SessionDescription) (string, webrtc.SessionDescription, error)
}

// PlayerHandler serves the orchestra: players, roles, scenes and macros.
//
//	GET  /api/players
//	PUT  /api/players/{id}            {"role": "...", "toggle": true}
//	POST /api/players/scene           {"scene": "..."}
//	POST /api/players/intensity       {"value": 0.6}
//	POST /api/players/macro/{name}    crescendo | silence | mute-all
//	POST /api/rtc/offer               SDP offer in, SDP answer out
type PlayerHandler struct {
	orchestra *orchestra.Orchestra
	signaller Signaller
	save      func() error
}

// NewPlayerHandler creates a PlayerHandler. save persists scene and roles
// after a change and may be nil.
func NewPlayerHandler(o *orchestra.Orchestra, s Signaller, save func() error) *PlayerHandler {
	return &PlayerHandler{orchestra: o, signaller: s, save: save}
}

type playersResponse struct {
	Players   []orchestra.Player `json:"players"`
	Scene     string             `json:"scene"`
	Intensity float64            `json:"intensity"`
	Roles     []osc.RoleInfo     `json:"roles"`
}

type updatePlayerRequest struct {
	Role   *osc.Role `json:"role"`
	Toggle bool      `json:"toggle"`
}

type offerResponse struct {
	PeerID string                    `json:"peer_id"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// ServeHTTP implements http.Handler.
func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/rtc/offer" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.offer(w, r)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/players"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w)
	case path == "scene" && r.Method == http.MethodPost:
		h.scene(w, r)
	case path == "intensity" && r.Method == http.MethodPost:
		h.intensity(w, r)
	case len(parts) == 2 && parts[0] == "macro" && r.Method == http.MethodPost:
		h.macro(w, parts[1])
	case len(parts) == 1 && path != "" && r.Method == http.MethodPut:
		h.update(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PlayerHandler) list(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, playersResponse{
		Players:   h.orchestra.Players(),
		Scene:     h.orchestra.Scene(),
		Intensity: h.orchestra.Intensity(),
		Roles:     osc.Roles,
	})
}

func (h *PlayerHandler) persist() {
	if h.save == nil {
		return
	}
	if err := h.save(); err != nil {
		log.Component("api").Warn("saving orchestra config", log.Err(err))
	}
}

func (h *PlayerHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req updatePlayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Role != nil {
		if err := h.orchestra.SetRole(id, *req.Role); err != nil {
			h.playerError(w, err)
			return
		}
	}
	if req.Toggle {
		if _, err := h.orchestra.ToggleActive(id); err != nil {
			h.playerError(w, err)
			return
		}
	}
	h.persist()

	for _, p := range h.orchestra.Players() {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Player not found")
}

func (h *PlayerHandler) playerError(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestra.ErrUnknownPlayer) {
		writeError(w, http.StatusNotFound, "Player not found")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (h *PlayerHandler) scene(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scene string `json:"scene"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Scene == "" {
		writeError(w, http.StatusBadRequest, "scene is required")
		return
	}
	if err := h.orchestra.SetScene(req.Scene); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to announce scene")
		return
	}
	h.persist()
	writeJSON(w, http.StatusOK, map[string]string{"scene": req.Scene})
}

func (h *PlayerHandler) intensity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	if *req.Value < 0 || *req.Value > 1 {
		writeError(w, http.StatusBadRequest, "value must be within 0..1")
		return
	}
	if err := h.orchestra.SetIntensity(*req.Value); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to send intensity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"intensity": *req.Value})
}

func (h *PlayerHandler) macro(w http.ResponseWriter, name string) {
	var err error
	switch name {
	case "crescendo":
		err = h.orchestra.Crescendo()
	case "silence":
		err = h.orchestra.Silence()
	case "mute-all":
		err = h.orchestra.MuteAll()
	default:
		writeError(w, http.StatusNotFound, "Unknown macro")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to send macro")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"macro": name})
}

func (h *PlayerHandler) offer(w http.ResponseWriter, r *http.Request) {
	if h.signaller == nil {
		writeError(w, http.StatusServiceUnavailable, "WebRTC is not available")
		return
	}

	var offer webrtc.SessionDescription
	if err := decodeJSON(w, r, &offer); err != nil || offer.SDP == "" {
		writeError(w, http.StatusBadRequest, "Invalid offer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	peerID, answer, err := h.signaller.Answer(ctx, offer)
	if err != nil {
		log.Component("api").Warn("rtc offer rejected", log.Err(err))
		writeError(w, http.StatusBadRequest, "Failed to answer offer")
		return
	}
	writeJSON(w, http.StatusOK, offerResponse{PeerID: peerID, Answer: answer})
}
