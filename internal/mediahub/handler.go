package mediahub

import (
	"net/http"
	"time"

	"famline/internal/callsession"
	"famline/internal/callsvc"
	"famline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades call participants onto the media relay.
// Path: /ws/calls/:group_id/:call_type/:call_id/:participant_id
type Handler struct {
	hub   *Hub
	calls *callsvc.Service
}

func NewHandler(hub *Hub, calls *callsvc.Service) *Handler {
	return &Handler{hub: hub, calls: calls}
}

func (h *Handler) ServeWS(c *gin.Context) {
	groupID := c.Param("group_id")
	callID := c.Param("call_id")
	participantID := c.Param("participant_id")
	callType := callsession.CallType(c.Param("call_type"))
	log := logger.FromGin(c)

	if !callType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown call type"})
		return
	}
	sess, err := h.calls.Get(c.Request.Context(), groupID, callType, callID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if _, ok := sess.Participant(participantID); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a call participant"})
		return
	}

	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "call_id", callID, "err", err)
		return
	}

	peer, cleanup := h.hub.Register(callID, participantID, conn)
	go h.writePump(peer, cleanup)
	h.readPump(peer, cleanup)
}

// readPump relays inbound binary frames to the other peers until the
// connection drops.
func (h *Handler) readPump(p *Peer, cleanup func()) {
	defer cleanup()
	_ = p.Conn.SetReadDeadline(time.Now().Add(pongWait))
	p.Conn.SetPongHandler(func(string) error {
		return p.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		msgType, data, err := p.Conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		h.hub.Relay(p, data)
	}
}

func (h *Handler) writePump(p *Peer, cleanup func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cleanup()
	}()
	for {
		select {
		case data, ok := <-p.Send:
			_ = p.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.Conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
