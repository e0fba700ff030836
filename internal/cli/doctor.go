package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the capture environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Services.Config
			healthy := true

			if path, err := exec.LookPath(cfg.FFmpeg.Command); err != nil {
				healthy = false
				fmt.Printf("✗ ffmpeg: %q not found on PATH (encoding and audio capture need it)\n", cfg.FFmpeg.Command)
			} else {
				fmt.Printf("✓ ffmpeg: %s\n", path)
			}

			probe := filepath.Join(cfg.RecordingsRoot, ".doctor")
			if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
				healthy = false
				fmt.Printf("✗ recordings root: %s not writable: %v\n", cfg.RecordingsRoot, err)
			} else {
				_ = os.Remove(probe)
				fmt.Printf("✓ recordings root: %s\n", cfg.RecordingsRoot)
			}

			if deps.Services.Transcriber.Enabled() {
				fmt.Println("✓ transcription: OpenAI key configured")
			} else {
				fmt.Println("- transcription: disabled (no OpenAI key)")
			}

			if orphans := deps.Services.Engine.Orphans(); len(orphans) > 0 {
				fmt.Printf("! %d orphaned session(s) pending; run 'meetcap recover'\n", len(orphans))
			}

			if !healthy {
				return fmt.Errorf("environment is not ready")
			}
			return nil
		},
	}
}
