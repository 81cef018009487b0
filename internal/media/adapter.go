// Package media abstracts the audio transport under an active call, so the
// call controller and recorder never touch the websocket directly.
package media

import "context"

// ConnectionState tracks the transport, not the call. A session can flap
// between connecting and connected while the call itself stays active.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Frame is one chunk of little-endian 16-bit LPCM audio.
type Frame struct {
	// ParticipantID is empty for locally captured audio.
	ParticipantID string
	PCM           []int16
}

// Session is one member's live media attachment to a call.
//
// Remote returns frames relayed from other participants; it is closed when
// the session closes. Send transmits locally captured audio and is a no-op
// while muted.
type Session interface {
	Send(ctx context.Context, pcm []int16) error
	Remote() <-chan Frame
	State() ConnectionState

	SetMuted(muted bool)
	Muted() bool
	SetSpeakerphone(on bool)
	Speakerphone() bool

	Close() error
}
