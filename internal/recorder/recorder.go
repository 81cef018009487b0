// Package recorder captures a two-way mix of a call and ships it to the
// backend as a mu-law WAV when the call ends.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"famline/internal/callsession"
	"famline/internal/media"

	"github.com/zaf/g711"
)

// DefaultSampleRate matches the relay's LPCM stream.
const DefaultSampleRate = 8000

// Uploader posts a finished recording. Satisfied by callclient.Client.
type Uploader interface {
	UploadRecording(ctx context.Context, groupID string, t callsession.CallType, callID, filename string, r io.Reader) (string, error)
}

// Recorder accumulates local audio plus the first remote participant's
// audio, and mixes them down on Stop. Start and Stop are both one-shot:
// a second Start is refused and a second Stop does nothing, so at most one
// recording ever exists per Recorder.
type Recorder struct {
	groupID  string
	callType callsession.CallType
	callID   string

	uploader   Uploader
	sampleRate int
	log        *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	remoteID string
	local    []int16
	remote   []int16
}

type Option func(*Recorder)

func WithSampleRate(hz int) Option {
	return func(r *Recorder) { r.sampleRate = hz }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

func New(groupID string, t callsession.CallType, callID string, up Uploader, opts ...Option) *Recorder {
	r := &Recorder{
		groupID:    groupID,
		callType:   t,
		callID:     callID,
		uploader:   up,
		sampleRate: DefaultSampleRate,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start arms the recorder. Returns false when recording is already in
// progress or already finished.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return false
	}
	r.started = true
	return true
}

// Recording reports whether audio is being captured right now.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && !r.stopped
}

// AppendLocal buffers a chunk of locally captured audio.
func (r *Recorder) AppendLocal(pcm []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	r.local = append(r.local, pcm...)
}

// AppendRemote buffers a relayed frame. The first remote participant heard
// is latched; audio from anyone else is ignored.
func (r *Recorder) AppendRemote(f media.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	if r.remoteID == "" {
		r.remoteID = f.ParticipantID
	}
	if f.ParticipantID != r.remoteID {
		return
	}
	r.remote = append(r.remote, f.PCM...)
}

// Stop finalizes the recording, encodes it and uploads it once. Upload
// failures are logged and dropped; the recording is not retried. The
// returned URL is empty when nothing was captured or the upload failed.
func (r *Recorder) Stop(ctx context.Context) string {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return ""
	}
	r.stopped = true
	local, remote := r.local, r.remote
	r.local, r.remote = nil, nil
	r.mu.Unlock()

	mixed := mix(local, remote)
	if len(mixed) == 0 {
		r.log.Info("recording empty, skipping upload", "call_id", r.callID)
		return ""
	}

	payload := g711.EncodeUlaw(pcmBytes(mixed))
	var buf bytes.Buffer
	if err := writeWAVMulaw(&buf, r.sampleRate, payload); err != nil {
		r.log.Error("recording encode failed", "call_id", r.callID, "err", err)
		return ""
	}

	if r.uploader == nil {
		r.log.Warn("no uploader attached, dropping recording", "call_id", r.callID, "samples", len(mixed))
		return ""
	}

	filename := fmt.Sprintf("call-%s.wav", r.callID)
	url, err := r.uploader.UploadRecording(ctx, r.groupID, r.callType, r.callID, filename, &buf)
	if err != nil {
		r.log.Error("recording upload failed", "call_id", r.callID, "err", err)
		return ""
	}
	r.log.Info("recording uploaded", "call_id", r.callID, "url", url, "samples", len(mixed))
	return url
}

// mix sums the two tracks sample by sample in 32-bit space and clamps the
// result back into int16. The longer track pads the shorter with silence.
func mix(a, b []int16) []int16 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var s int32
		if i < len(a) {
			s += int32(a[i])
		}
		if i < len(b) {
			s += int32(b[i])
		}
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int16(s)
	}
	return out
}

func pcmBytes(pcm []int16) []byte {
	data := make([]byte, 2*len(pcm))
	for i, s := range pcm {
		data[2*i] = byte(s)
		data[2*i+1] = byte(uint16(s) >> 8)
	}
	return data
}
