package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"meetcap/internal/domain"
	"meetcap/internal/usecase"
)

func newLeaveCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <meeting-id>",
		Short: "Finalize a meeting's artifacts",
		Long: "Leave a live session, or reconstitute an orphaned one left behind by a\n" +
			"previous process, and produce the artifact bundle.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := deps.Services.Engine.Leave(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLeaveResult(result)
			maybeTranscribe(cmd, deps, result)
			return nil
		},
	}
}

func printLeaveResult(result domain.LeaveResult) {
	if result.Recovered {
		fmt.Println("Recovered orphaned session.")
	}
	fmt.Printf("Duration: %s\n", usecase.FormatTimestamp(int64(result.DurationSeconds*1000)))
	fmt.Printf("Frames:   %d\n", result.FrameCount)
	if result.VideoPath != "" {
		fmt.Printf("Video:    %s\n", result.VideoPath)
	}
	if result.AudioPath != "" {
		fmt.Printf("Audio:    %s\n", result.AudioPath)
	}
	fmt.Printf("Transcript (%d segments):\n%s\n", len(result.TranscriptSegments), result.Transcript)
}

// maybeTranscribe runs the optional speech-to-text collaborator when captions
// came up empty but an audio artifact exists. Failures never affect the
// finalized result.
func maybeTranscribe(cmd *cobra.Command, deps *Dependencies, result domain.LeaveResult) {
	transcriber := deps.Services.Transcriber
	if !transcriber.Enabled() || len(result.TranscriptSegments) > 0 || result.AudioPath == "" {
		return
	}
	text, err := transcriber.Transcribe(cmd.Context(), result.AudioPath)
	if err != nil {
		deps.Log.WithError(err).Warn("audio transcription failed")
		return
	}
	fmt.Printf("Audio transcription:\n%s\n", text)
}
