// Package wav reads and writes RIFF/WAVE files.
//
// Decode accepts integer PCM (8, 16, 24 and 32 bit), IEEE float (32 and 64
// bit) and WAVE_FORMAT_EXTENSIBLE wrappers around either. Samples are
// returned interleaved and normalized to [-1, 1]. Encode always writes
// 16-bit mono PCM.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// Errors returned by Decode.
var (
	ErrNotWAV      = errors.New("wav: not a RIFF/WAVE file")
	ErrMalformed   = errors.New("wav: malformed file")
	ErrUnsupported = errors.New("wav: unsupported sample format")
)

// Sample rates Decode accepts. Rates outside this range are rejected as
// unsupported.
const (
	MinSampleRate = 4000
	MaxSampleRate = 192000
)

const (
	formatPCM        = 0x0001
	formatFloat      = 0x0003
	formatExtensible = 0xFFFE
)

// Header describes the fmt chunk of a WAVE file.
type Header struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Audio is the decoded content of a WAVE file.
type Audio struct {
	Header
	// Samples are interleaved across Channels.
	Samples []float32
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Decode parses a complete WAVE file held in memory.
func Decode(data []byte) (*Audio, error) {
	if !IsWAV(data) {
		return nil, ErrNotWAV
	}

	var (
		hdr     Header
		haveFmt bool
		payload []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		// Streaming writers leave the data size at 0 or 0xFFFFFFFF.
		if end > len(data) || end < body {
			if id != "data" {
				return nil, fmt.Errorf("%w: chunk %q overruns file", ErrMalformed, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			h, err := parseFmt(data[body:end])
			if err != nil {
				return nil, err
			}
			hdr, haveFmt = h, true
		case "data":
			payload = data[body:end]
			if size == 0 && haveFmt {
				payload = data[body:]
			}
		}
		if payload != nil && haveFmt {
			break
		}
		pos = end + (size & 1)
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrMalformed)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrMalformed)
	}

	samples, err := decodeSamples(hdr, payload)
	if err != nil {
		return nil, err
	}
	return &Audio{Header: hdr, Samples: samples}, nil
}

func parseFmt(b []byte) (Header, error) {
	if len(b) < 16 {
		return Header{}, fmt.Errorf("%w: fmt chunk too short", ErrMalformed)
	}
	h := Header{
		Format:        binary.LittleEndian.Uint16(b[0:2]),
		Channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		SampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		BitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	if h.Format == formatExtensible {
		if len(b) < 26 {
			return Header{}, fmt.Errorf("%w: extensible fmt chunk too short", ErrMalformed)
		}
		// The first two bytes of the SubFormat GUID carry the real format tag.
		h.Format = binary.LittleEndian.Uint16(b[24:26])
	}
	if h.Channels <= 0 || h.SampleRate <= 0 {
		return Header{}, fmt.Errorf("%w: %d channels at %d Hz", ErrMalformed, h.Channels, h.SampleRate)
	}
	if h.SampleRate < MinSampleRate || h.SampleRate > MaxSampleRate {
		return Header{}, fmt.Errorf("%w: sample rate %d Hz", ErrUnsupported, h.SampleRate)
	}
	return h, nil
}

func decodeSamples(h Header, b []byte) ([]float32, error) {
	width := h.BitsPerSample / 8
	switch {
	case h.Format == formatPCM && (width >= 1 && width <= 4):
	case h.Format == formatFloat && (width == 4 || width == 8):
	default:
		return nil, fmt.Errorf("%w: format %#x, %d bits", ErrUnsupported, h.Format, h.BitsPerSample)
	}

	n := len(b) / width
	n -= n % h.Channels
	out := make([]float32, n)
	for i := range n {
		s := b[i*width : (i+1)*width]
		switch {
		case h.Format == formatFloat && width == 4:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(s))
		case h.Format == formatFloat:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(s)))
		case width == 1:
			// 8-bit WAV is unsigned.
			out[i] = (float32(s[0]) - 128) / 128
		case width == 2:
			out[i] = float32(int16(binary.LittleEndian.Uint16(s))) / 32768
		case width == 3:
			v := int32(uint32(s[0])<<8|uint32(s[1])<<16|uint32(s[2])<<24) >> 8
			out[i] = float32(v) / 8388608
		case width == 4:
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(s))) / 2147483648)
		}
		out[i] = clamp(out[i])
	}
	return out, nil
}

func clamp(f float32) float32 {
	switch {
	case f != f:
		return 0
	case f > 1:
		return 1
	case f < -1:
		return -1
	}
	return f
}

// Encode writes buf as a 16-bit mono PCM WAVE file.
func Encode(buf *pcm.Buffer) []byte {
	data := buf.S16LE()
	var b bytes.Buffer
	b.Grow(44 + len(data))

	le := binary.LittleEndian
	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+len(data)))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(formatPCM))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint32(buf.SampleRate))
	binary.Write(&b, le, uint32(buf.SampleRate*2))
	binary.Write(&b, le, uint16(2))
	binary.Write(&b, le, uint16(16))

	b.WriteString("data")
	binary.Write(&b, le, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}
