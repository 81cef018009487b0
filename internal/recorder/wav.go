package recorder

import (
	"encoding/binary"
	"io"
)

const wavFormatMulaw = 7

// writeWAVMulaw wraps G.711 mu-law payload bytes in a mono WAV container.
// Non-PCM formats carry an extended fmt chunk and a fact chunk.
func writeWAVMulaw(w io.Writer, sampleRate int, payload []byte) error {
	// fmt(18+8) + fact(4+8) + data header(8)
	riffSize := 4 + 26 + 12 + 8 + len(payload)

	var hdr []byte
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(riffSize))
	hdr = append(hdr, "WAVE"...)

	hdr = append(hdr, "fmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 18)
	hdr = binary.LittleEndian.AppendUint16(hdr, wavFormatMulaw)
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // mono
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(sampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(sampleRate)) // one byte per sample
	hdr = binary.LittleEndian.AppendUint16(hdr, 1)                  // block align
	hdr = binary.LittleEndian.AppendUint16(hdr, 8)                  // bits per sample
	hdr = binary.LittleEndian.AppendUint16(hdr, 0)                  // no extra format bytes

	hdr = append(hdr, "fact"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 4)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(payload)))

	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(payload)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
