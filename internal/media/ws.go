package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"famline/internal/callsession"

	"github.com/gorilla/websocket"
)

var ErrSessionClosed = errors.New("media: session closed")

const (
	wsWriteWait    = 10 * time.Second
	remoteChanSize = 64
)

// WSSession attaches to the server's media relay over a websocket.
//
// Wire format per binary message: one length byte, the sender's participant
// id, then the LPCM16LE payload. The relay forwards messages verbatim, so
// the sender tags each frame itself.
type WSSession struct {
	conn          *websocket.Conn
	participantID string
	log           *slog.Logger

	remote chan Frame
	state  atomic.Int32

	muted   atomic.Bool
	speaker atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

type DialOption func(*dialConfig)

type dialConfig struct {
	token string
	log   *slog.Logger
}

func WithAccessToken(token string) DialOption {
	return func(c *dialConfig) { c.token = token }
}

func WithLogger(l *slog.Logger) DialOption {
	return func(c *dialConfig) { c.log = l }
}

// Dial connects to the relay for one call. baseURL is a ws:// or wss:// URL
// without a trailing slash.
func Dial(ctx context.Context, baseURL, groupID string, t callsession.CallType, callID, participantID string, opts ...DialOption) (*WSSession, error) {
	cfg := dialConfig{log: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	url := fmt.Sprintf("%s/ws/calls/%s/%s/%s/%s", baseURL, groupID, t, callID, participantID)
	header := http.Header{}
	if cfg.token != "" {
		header.Set("Authorization", "Bearer "+cfg.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("media: dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("media: dial %s: %w", url, err)
	}

	s := &WSSession{
		conn:          conn,
		participantID: participantID,
		log:           cfg.log,
		remote:        make(chan Frame, remoteChanSize),
	}
	s.state.Store(int32(StateConnected))
	go s.readLoop()
	return s, nil
}

func (s *WSSession) readLoop() {
	defer func() {
		s.state.Store(int32(StateClosed))
		close(s.remote)
	}()
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() != StateClosed {
				s.log.Debug("media read loop ended", "participant_id", s.participantID, "err", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		frame, err := decodeFrame(data)
		if err != nil {
			s.log.Warn("dropping malformed media frame", "err", err)
			continue
		}
		select {
		case s.remote <- frame:
		default:
			// Drop rather than stall the socket when the consumer lags.
		}
	}
}

// Send transmits one frame of locally captured audio. Muted sessions
// swallow frames silently.
func (s *WSSession) Send(ctx context.Context, pcm []int16) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if s.muted.Load() {
		return nil
	}
	data := encodeFrame(s.participantID, pcm)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("media: send: %w", err)
	}
	return nil
}

func (s *WSSession) Remote() <-chan Frame { return s.remote }

func (s *WSSession) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

func (s *WSSession) SetMuted(muted bool) { s.muted.Store(muted) }
func (s *WSSession) Muted() bool         { return s.muted.Load() }

func (s *WSSession) SetSpeakerphone(on bool) { s.speaker.Store(on) }
func (s *WSSession) Speakerphone() bool      { return s.speaker.Load() }

// Close tears the socket down. Safe to call more than once.
func (s *WSSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func encodeFrame(participantID string, pcm []int16) []byte {
	if len(participantID) > 255 {
		participantID = participantID[:255]
	}
	data := make([]byte, 1+len(participantID)+2*len(pcm))
	data[0] = byte(len(participantID))
	copy(data[1:], participantID)
	off := 1 + len(participantID)
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(data[off+2*i:], uint16(sample))
	}
	return data
}

func decodeFrame(data []byte) (Frame, error) {
	if len(data) < 1 {
		return Frame{}, errors.New("empty frame")
	}
	idLen := int(data[0])
	if len(data) < 1+idLen {
		return Frame{}, errors.New("truncated participant id")
	}
	payload := data[1+idLen:]
	if len(payload)%2 != 0 {
		return Frame{}, errors.New("odd pcm payload length")
	}
	pcm := make([]int16, len(payload)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return Frame{ParticipantID: string(data[1 : 1+idLen]), PCM: pcm}, nil
}
