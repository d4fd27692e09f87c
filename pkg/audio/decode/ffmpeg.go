package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// ErrFFmpegMissing is returned when the ffmpeg binary cannot be found.
var ErrFFmpegMissing = errors.New("decode: ffmpeg not found")

// FFmpeg converts arbitrary containers to raw s16le mono PCM by piping
// through an ffmpeg process.
type FFmpeg struct {
	Path    string
	Timeout time.Duration
}

// Convert feeds data to ffmpeg on stdin and returns raw PCM in out from
// stdout.
func (f *FFmpeg) Convert(ctx context.Context, data []byte, out pcm.Format) ([]byte, error) {
	if err := out.Validate(); err != nil {
		return nil, err
	}
	path, err := exec.LookPath(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegMissing, err)
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ar", strconv.Itoa(out.SampleRate), "-ac", strconv.Itoa(out.Channels), "-f", "s16le",
		"pipe:1")
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("decode: ffmpeg: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrMalformed, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() < out.FrameSize() {
		return nil, fmt.Errorf("%w: ffmpeg produced no audio", ErrMalformed)
	}
	return stdout.Bytes(), nil
}
