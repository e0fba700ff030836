package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/ports"
)

const (
	// encodeTimeout caps one encode; a kill here is non-terminal because
	// the frames stay on disk for recovery.
	encodeTimeout = 300 * time.Second
	// minAudioBytes separates a real capture from an MP3 header stub left
	// by a device that produced no samples.
	minAudioBytes = 5 * 1024
)

// ErrEncodeTimeout reports that ffmpeg was killed at the encode deadline.
var ErrEncodeTimeout = errors.New("encode timed out")

// FFmpegEncoder joins a numbered PNG frame sequence (plus optional audio)
// into a single MP4 with one short-lived ffmpeg invocation.
type FFmpegEncoder struct {
	command string
	timeout time.Duration
	log     *logrus.Entry
}

func NewFFmpegEncoder(command string, log *logrus.Entry) *FFmpegEncoder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegEncoder{command: command, timeout: encodeTimeout, log: log}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, req ports.EncodeRequest) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := EncodeArgs(req)
	cmd := exec.CommandContext(ctx, e.command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", ErrEncodeTimeout, e.timeout)
		}
		return fmt.Errorf("encode: %w: %s", err, trimmed(string(out)))
	}
	e.log.WithField("video", req.VideoPath).Info("encode complete")
	return nil
}

// EncodeArgs builds the ffmpeg argument list for one encode. The audio
// input is included only when the file exists and holds real samples.
func EncodeArgs(req ports.EncodeRequest) []string {
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = 2
	}
	pattern := filepath.Join(req.FramesDir, "frame_%06d.png")

	args := []string{
		"-framerate", fmt.Sprintf("%d", frameRate),
		"-i", pattern,
	}
	if HasUsableAudio(req.AudioPath) {
		args = append(args, "-i", req.AudioPath)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
	)
	if HasUsableAudio(req.AudioPath) {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args,
		"-crf", "23",
		"-preset", "fast",
		"-shortest",
		"-y",
		req.VideoPath,
	)
	return args
}

// HasUsableAudio reports whether path holds a capture worth muxing.
func HasUsableAudio(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > minAudioBytes
}

var _ ports.Encoder = (*FFmpegEncoder)(nil)
