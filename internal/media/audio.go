package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/ports"
)

const (
	// stopGrace is how long the graceful "q" quit gets before the process
	// is signalled.
	stopGrace = 500 * time.Millisecond
	// finalizeWait bounds how long Stop waits for ffmpeg to flush the MP3.
	finalizeWait = time.Second
)

// FFmpegAudio captures host audio to MP3 with a long-lived ffmpeg child.
// The output is tuned for downstream speech-to-text, not fidelity: mono,
// 16 kHz, 64 kbps.
type FFmpegAudio struct {
	command string
	log     *logrus.Entry
}

func NewFFmpegAudio(command string, log *logrus.Entry) *FFmpegAudio {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegAudio{command: command, log: log}
}

func (c *FFmpegAudio) Start(ctx context.Context, outputPath string, cfg ports.AudioConfig) (ports.AudioSession, error) {
	args := append(inputArgs(cfg),
		"-acodec", "libmp3lame",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Devices that do not exist make ffmpeg bail almost immediately;
	// report that as a start failure instead of a silent empty file.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &audioSession{
		stdin:   stdin,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		log:     c.log,
	}, nil
}

func inputArgs(cfg ports.AudioConfig) []string {
	format := cfg.InputFormat
	device := cfg.Device
	if format == "" {
		if runtime.GOOS == "darwin" {
			format = "avfoundation"
		} else {
			format = "pulse"
		}
	}
	if device == "" {
		if format == "avfoundation" {
			device = ":0"
		} else {
			device = "default"
		}
	}
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
	}
}

type audioSession struct {
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error
	log     *logrus.Entry

	stopOnce sync.Once
	stopErr  error
}

// Stop quits ffmpeg gracefully so the MP3 container is finalized: "q" on
// stdin first, terminate signal after a grace period, then a bounded wait.
func (s *audioSession) Stop() error {
	s.stopOnce.Do(func() {
		if _, err := io.WriteString(s.stdin, "q"); err != nil {
			s.log.WithError(err).Debug("ffmpeg graceful quit write failed")
		}
		_ = s.stdin.Close()

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
			return
		case <-time.After(stopGrace):
		}

		if s.process != nil {
			_ = s.process.Signal(syscall.SIGTERM)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(finalizeWait):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})
	return s.stopErr
}

// normalizeStopErr drops plain non-zero exits; ffmpeg reports interrupted
// capture that way and the output file is still valid.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}

var _ ports.AudioCapture = (*FFmpegAudio)(nil)
