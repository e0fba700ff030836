package media

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetcap/internal/ports"
)

func TestFFmpegAudioStartAndGracefulStop(t *testing.T) {
	t.Parallel()

	// The stand-in quits when stdin reaches EOF, the way ffmpeg honors "q".
	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nread -r _ || true\nexit 0\n")
	capture := NewFFmpegAudio(script, testLog())

	session, err := capture.Start(context.Background(), filepath.Join(t.TempDir(), "a.mp3"), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// Stop is idempotent.
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestFFmpegAudioMissingDeviceFailsFast(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "nodev.sh", "#!/usr/bin/env bash\necho 'No such audio device' 1>&2\nexit 1\n")
	capture := NewFFmpegAudio(script, testLog())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, filepath.Join(t.TempDir(), "a.mp3"), ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected start failure for missing device")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "No such audio device") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestFFmpegAudioStopSignalsStuckProcess(t *testing.T) {
	t.Parallel()

	// Ignores stdin EOF; Stop must escalate to a signal.
	script := writeScript(t, "stuck.sh", "#!/usr/bin/env bash\ntrap 'exit 0' INT TERM\nwhile true; do sleep 0.1; done\n")
	capture := NewFFmpegAudio(script, testLog())

	session, err := capture.Start(context.Background(), filepath.Join(t.TempDir(), "a.mp3"), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	start := time.Now()
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("stop took too long: %s", elapsed)
	}
}

func TestInputArgs(t *testing.T) {
	t.Parallel()

	args := inputArgs(ports.AudioConfig{InputFormat: "pulse", Device: "default"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f pulse") || !strings.Contains(joined, "-i default") {
		t.Fatalf("unexpected input args: %v", args)
	}

	mac := inputArgs(ports.AudioConfig{InputFormat: "avfoundation", Device: ":2"})
	joined = strings.Join(mac, " ")
	if !strings.Contains(joined, "-f avfoundation") || !strings.Contains(joined, "-i :2") {
		t.Fatalf("unexpected avfoundation args: %v", mac)
	}

	if def := inputArgs(ports.AudioConfig{InputFormat: "avfoundation"}); def[len(def)-1] != ":0" {
		t.Fatalf("avfoundation default device should be :0, got %v", def)
	}
}

func TestNormalizeStopErrIgnoresExitErrors(t *testing.T) {
	t.Parallel()

	if got := normalizeStopErr(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}

	exitErr := exec.Command(writeScript(t, "exit3.sh", "#!/usr/bin/env bash\nexit 3\n")).Run()
	if exitErr == nil {
		t.Fatalf("expected the stand-in to exit non-zero")
	}
	if got := normalizeStopErr(exitErr); got != nil {
		t.Fatalf("expected exit error to be dropped, got %v", got)
	}
}
