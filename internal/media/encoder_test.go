package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/ports"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestEncodeArgsVideoOnly(t *testing.T) {
	t.Parallel()

	args := EncodeArgs(ports.EncodeRequest{
		FramesDir: "/tmp/s_frames",
		VideoPath: "/tmp/s_video.mp4",
		FrameRate: 2,
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-framerate 2") {
		t.Fatalf("missing framerate: %v", args)
	}
	if !strings.Contains(joined, filepath.Join("/tmp/s_frames", "frame_%06d.png")) {
		t.Fatalf("missing frame pattern: %v", args)
	}
	if strings.Contains(joined, "-c:a") {
		t.Fatalf("audio codec present in video-only encode: %v", args)
	}
	if !strings.Contains(joined, "-c:v libx264") || !strings.Contains(joined, "-pix_fmt yuv420p") {
		t.Fatalf("missing video codec flags: %v", args)
	}
	if args[len(args)-1] != "/tmp/s_video.mp4" {
		t.Fatalf("output path must be last: %v", args)
	}
}

func TestEncodeArgsWithAudio(t *testing.T) {
	t.Parallel()

	audioPath := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(audioPath, make([]byte, 6*1024), 0o644); err != nil {
		t.Fatalf("seed audio: %v", err)
	}

	args := EncodeArgs(ports.EncodeRequest{
		FramesDir: "/tmp/s_frames",
		AudioPath: audioPath,
		VideoPath: "/tmp/s_video.mp4",
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i "+audioPath) {
		t.Fatalf("audio input missing: %v", args)
	}
	if !strings.Contains(joined, "-c:a aac") || !strings.Contains(joined, "-b:a 128k") {
		t.Fatalf("audio codec flags missing: %v", args)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Fatalf("missing -shortest: %v", args)
	}
}

func TestHasUsableAudioIgnoresStubs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stub := filepath.Join(dir, "stub.mp3")
	if err := os.WriteFile(stub, make([]byte, 100), 0o644); err != nil {
		t.Fatalf("seed stub: %v", err)
	}
	real := filepath.Join(dir, "real.mp3")
	if err := os.WriteFile(real, make([]byte, 10*1024), 0o644); err != nil {
		t.Fatalf("seed real: %v", err)
	}

	if HasUsableAudio(stub) {
		t.Fatalf("header stub treated as usable audio")
	}
	if !HasUsableAudio(real) {
		t.Fatalf("real capture rejected")
	}
	if HasUsableAudio("") || HasUsableAudio(filepath.Join(dir, "missing.mp3")) {
		t.Fatalf("absent audio treated as usable")
	}
}

func TestEncodeRunsCommand(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "encode.sh", "#!/usr/bin/env bash\nexit 0\n")
	encoder := NewFFmpegEncoder(script, testLog())

	err := encoder.Encode(context.Background(), ports.EncodeRequest{
		FramesDir: t.TempDir(),
		VideoPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
}

func TestEncodeReportsFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'corrupt frame' 1>&2\nexit 1\n")
	encoder := NewFFmpegEncoder(script, testLog())

	err := encoder.Encode(context.Background(), ports.EncodeRequest{
		FramesDir: t.TempDir(),
		VideoPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if err == nil {
		t.Fatalf("expected encode failure")
	}
	if !strings.Contains(err.Error(), "corrupt frame") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestEncodeTimeoutKillsProcess(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hang.sh", "#!/usr/bin/env bash\nexec sleep 30\n")
	encoder := NewFFmpegEncoder(script, testLog())
	encoder.timeout = 100 * time.Millisecond

	start := time.Now()
	err := encoder.Encode(context.Background(), ports.EncodeRequest{
		FramesDir: t.TempDir(),
		VideoPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if !errors.Is(err, ErrEncodeTimeout) {
		t.Fatalf("expected ErrEncodeTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("encode was not killed at the deadline")
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
