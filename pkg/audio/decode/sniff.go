package decode

import "bytes"

// Container identifies an encoded audio container by its magic bytes.
type Container string

const (
	Unknown Container = ""
	WAV     Container = "wav"
	MP3     Container = "mp3"
	WebM    Container = "webm"
	Ogg     Container = "ogg"
	MP4     Container = "m4a"
)

// Ext returns the file extension for the container, including the dot.
func (c Container) Ext() string {
	if c == Unknown {
		return ".bin"
	}
	return "." + string(c)
}

// MIMEType returns the MIME type browsers use for the container.
func (c Container) MIMEType() string {
	switch c {
	case WAV:
		return "audio/wav"
	case MP3:
		return "audio/mpeg"
	case WebM:
		return "audio/webm"
	case Ogg:
		return "audio/ogg"
	case MP4:
		return "audio/mp4"
	}
	return "application/octet-stream"
}

// Sniff detects the container from the leading bytes of data.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return WAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return MP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync.
		return MP3
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return WebM
	case bytes.HasPrefix(data, []byte("OggS")):
		return Ogg
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return MP4
	}
	return Unknown
}
