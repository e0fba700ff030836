package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newJoinCmd(deps *Dependencies) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "join <meeting-id> <meeting-url>",
		Short: "Join a meeting and capture it until interrupted",
		Long: "Join the meeting as an anonymous participant and record frames, audio,\n" +
			"and captions. The capture runs until Ctrl+C (or --duration elapses),\n" +
			"then the artifact bundle is finalized.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, meetingURL := args[0], args[1]
			engine := deps.Services.Engine

			joinResult, err := engine.Join(cmd.Context(), meetingID, meetingURL)
			if err != nil {
				return err
			}
			if !joinResult.Success {
				return fmt.Errorf("join failed: %s", joinResult.Error)
			}
			fmt.Printf("Joined %s meeting (session %s); recording.\n", joinResult.Platform, joinResult.SessionID)

			waitForStop(duration)

			result, err := engine.Leave(cmd.Context(), meetingID)
			if err != nil {
				return err
			}
			printLeaveResult(result)
			maybeTranscribe(cmd, deps, result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Leave automatically after this long (default: wait for Ctrl+C)")

	return cmd
}

func waitForStop(duration time.Duration) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-interrupt:
		}
		return
	}
	fmt.Println("Press Ctrl+C to leave the meeting and finalize the recording.")
	<-interrupt
}
