package orchestra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/ayusman/hypnosonore/internal/log"
)

// ChannelLabel is the data channel players open.
const ChannelLabel = "hypno-channel"

// DefaultICEServers is the public STUN server players use.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Host answers player offers and feeds their data-channel messages to an Orchestra.
type Host struct {
	orchestra  *Orchestra
	iceServers []string
	logger     *slog.Logger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

// NewHost creates a Host. A nil iceServers uses DefaultICEServers; an
// empty non-nil slice uses host candidates only.
func NewHost(o *Orchestra, iceServers []string) *Host {
	if iceServers == nil {
		iceServers = DefaultICEServers
	}
	return &Host{
		orchestra:  o,
		iceServers: iceServers,
		logger:     log.Component("rtc"),
		peers:      make(map[string]*webrtc.PeerConnection),
	}
}

// Answer accepts a player's SDP offer and returns the answer once ICE
// gathering has finished, so no trickle signalling is needed.
func (h *Host) Answer(ctx context.Context, offer webrtc.SessionDescription) (string, webrtc.SessionDescription, error) {
	config := webrtc.Configuration{}
	if len(h.iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: h.iceServers}}
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return "", webrtc.SessionDescription{}, fmt.Errorf("new peer connection: %w", err)
	}

	peerID := uuid.New().String()
	logger := h.logger.With("peer", peerID)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			logger.Warn("ignoring data channel", "label", dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Info("data channel open")
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if err := h.orchestra.HandleMessage(msg.Data); err != nil {
				logger.Warn("player message rejected", log.Err(err))
			}
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			h.remove(peerID)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return "", webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return "", webrtc.SessionDescription{}, ctx.Err()
	}

	h.mu.Lock()
	h.peers[peerID] = pc
	h.mu.Unlock()

	return peerID, *pc.LocalDescription(), nil
}

// PeerCount returns the number of connected players.
func (h *Host) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close disconnects every player.
func (h *Host) Close() error {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()

	var firstErr error
	for _, pc := range peers {
		if err := pc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Host) remove(peerID string) {
	h.mu.Lock()
	pc, ok := h.peers[peerID]
	delete(h.peers, peerID)
	h.mu.Unlock()
	if ok {
		go pc.Close()
	}
}
