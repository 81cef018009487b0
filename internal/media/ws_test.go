package media

import (
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768, 12345}
	data := encodeFrame("alice", pcm)

	frame, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.ParticipantID != "alice" {
		t.Fatalf("expected participant alice, got %q", frame.ParticipantID)
	}
	if len(frame.PCM) != len(pcm) {
		t.Fatalf("expected %d samples, got %d", len(pcm), len(frame.PCM))
	}
	for i := range pcm {
		if frame.PCM[i] != pcm[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, pcm[i], frame.PCM[i])
		}
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated id", []byte{10, 'a', 'b'}},
		{"odd payload", []byte{1, 'a', 0x01, 0x02, 0x03}},
	}
	for _, tc := range cases {
		if _, err := decodeFrame(tc.data); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
