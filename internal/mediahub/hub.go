package mediahub

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultMaxMessageSize bounds a single relayed frame. 64 KiB fits several
// hundred milliseconds of 16-bit audio with headroom for video keyframe slices.
const DefaultMaxMessageSize int64 = 64 * 1024

// Peer is one participant's WebSocket connection in a call.
type Peer struct {
	CallID        string
	ParticipantID string
	Conn          *websocket.Conn
	Send          chan []byte
}

// Hub relays media frames between the joined participants of a call. Binary
// messages are audio/video frames and are forwarded as-is to every other peer
// on the same call; the hub does no decoding or mixing.
type Hub struct {
	mu         sync.RWMutex
	peers      map[string]map[*Peer]struct{} // callID -> set of peers
	upgrader   websocket.Upgrader
	maxMsgSize int64
	log        *slog.Logger
}

// NewHub creates a media relay hub.
func NewHub(maxMessageSize int64, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		peers:      make(map[string]map[*Peer]struct{}),
		maxMsgSize: maxMessageSize,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
	}
}

// Upgrader exposes the shared upgrader to the HTTP handler.
func (h *Hub) Upgrader() *websocket.Upgrader { return &h.upgrader }

// Register adds a peer to a call and returns it with a cleanup function.
// The cleanup is idempotent.
func (h *Hub) Register(callID, participantID string, conn *websocket.Conn) (*Peer, func()) {
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	p := &Peer{
		CallID:        callID,
		ParticipantID: participantID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
	}
	h.mu.Lock()
	if h.peers[callID] == nil {
		h.peers[callID] = make(map[*Peer]struct{})
	}
	h.peers[callID][p] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.peers[callID]; ok {
				delete(set, p)
				if len(set) == 0 {
					delete(h.peers, callID)
				}
			}
			h.mu.Unlock()
			close(p.Send)
			_ = conn.Close()
		})
	}
	return p, cleanup
}

// Relay forwards a frame from one peer to every other peer on the call.
// Slow receivers are skipped rather than blocking the sender.
func (h *Hub) Relay(from *Peer, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers[from.CallID] {
		if p == from {
			continue
		}
		select {
		case p.Send <- data:
		default:
			h.log.Debug("dropping frame for slow peer",
				"call_id", p.CallID, "participant_id", p.ParticipantID)
		}
	}
}

// CloseCall disconnects every peer on a call (server-side call termination).
func (h *Hub) CloseCall(callID string) {
	h.mu.Lock()
	set := h.peers[callID]
	delete(h.peers, callID)
	h.mu.Unlock()
	for p := range set {
		_ = p.Conn.Close()
	}
}

// PeerCount reports how many connections a call currently has.
func (h *Hub) PeerCount(callID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[callID])
}
