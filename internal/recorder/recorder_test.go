package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"famline/internal/callsession"
	"famline/internal/media"
)

type stubUploader struct {
	calls int
	data  []byte
	url   string
	err   error
}

func (s *stubUploader) UploadRecording(_ context.Context, _ string, _ callsession.CallType, _ string, _ string, r io.Reader) (string, error) {
	s.calls++
	s.data, _ = io.ReadAll(r)
	return s.url, s.err
}

func TestStart_SingleShot(t *testing.T) {
	r := New("g1", callsession.TypePhone, "c1", &stubUploader{})
	if !r.Start() {
		t.Fatalf("first Start must succeed")
	}
	if r.Start() {
		t.Fatalf("second Start must be refused")
	}
	r.Stop(context.Background())
	if r.Start() {
		t.Fatalf("Start after Stop must be refused")
	}
}

func TestStop_MixesUploadsOnce(t *testing.T) {
	up := &stubUploader{url: "/recordings/c1.wav"}
	r := New("g1", callsession.TypePhone, "c1", up)
	r.Start()

	r.AppendLocal([]int16{1000, 2000, 3000})
	r.AppendRemote(media.Frame{ParticipantID: "bob", PCM: []int16{100, 200}})
	// A second remote speaker is ignored once bob is latched.
	r.AppendRemote(media.Frame{ParticipantID: "carol", PCM: []int16{9999, 9999, 9999}})

	url := r.Stop(context.Background())
	if url != "/recordings/c1.wav" {
		t.Fatalf("unexpected url %q", url)
	}
	if up.calls != 1 {
		t.Fatalf("expected one upload, got %d", up.calls)
	}
	if r.Stop(context.Background()) != "" || up.calls != 1 {
		t.Fatalf("second Stop must not upload again")
	}

	// Three mixed samples, one mu-law byte each.
	if got := string(up.data[:4]); got != "RIFF" {
		t.Fatalf("expected RIFF container, got %q", got)
	}
	if format := binary.LittleEndian.Uint16(up.data[20:]); format != wavFormatMulaw {
		t.Fatalf("expected mu-law format tag, got %d", format)
	}
	dataLen := binary.LittleEndian.Uint32(up.data[len(up.data)-4-3:])
	if dataLen != 3 {
		t.Fatalf("expected 3 payload bytes, got %d", dataLen)
	}
}

func TestStop_UploadFailureNotRetried(t *testing.T) {
	up := &stubUploader{err: errors.New("network down")}
	r := New("g1", callsession.TypeVideo, "c2", up)
	r.Start()
	r.AppendLocal([]int16{1, 2, 3})

	if url := r.Stop(context.Background()); url != "" {
		t.Fatalf("expected empty url on failure, got %q", url)
	}
	if up.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", up.calls)
	}
}

func TestStop_EmptyRecordingSkipsUpload(t *testing.T) {
	up := &stubUploader{}
	r := New("g1", callsession.TypePhone, "c3", up)
	r.Start()
	if url := r.Stop(context.Background()); url != "" {
		t.Fatalf("expected empty url, got %q", url)
	}
	if up.calls != 0 {
		t.Fatalf("expected no upload for empty recording")
	}
}

func TestStop_NoUploaderDropsRecording(t *testing.T) {
	r := New("g1", callsession.TypePhone, "c4", nil)
	r.Start()
	r.AppendLocal([]int16{1, 2, 3})

	if url := r.Stop(context.Background()); url != "" {
		t.Fatalf("expected empty url without an uploader, got %q", url)
	}
	if r.Recording() {
		t.Fatalf("recorder must be stopped")
	}
}

func TestMix_Clamps(t *testing.T) {
	out := mix([]int16{30000, -30000, 5}, []int16{30000, -30000})
	if out[0] != 32767 {
		t.Fatalf("expected positive clamp, got %d", out[0])
	}
	if out[1] != -32768 {
		t.Fatalf("expected negative clamp, got %d", out[1])
	}
	if out[2] != 5 {
		t.Fatalf("expected silence padding on shorter track, got %d", out[2])
	}
}
