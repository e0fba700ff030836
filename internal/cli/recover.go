package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"meetcap/internal/usecase"
)

func newRecoverCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [meeting-id]",
		Short: "Recover orphaned sessions from a previous process",
		Long: "Reconstitute playable recordings from sessions whose owning process died.\n" +
			"With no argument, every persisted orphan is recovered.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := deps.Services.Engine

			orphans := engine.Orphans()
			if len(args) == 1 {
				for _, rec := range orphans {
					if rec.MeetingID == args[0] {
						result, err := engine.RecoverOrphan(cmd.Context(), rec)
						if err != nil {
							return err
						}
						printLeaveResult(result)
						return nil
					}
				}
				return fmt.Errorf("no persisted session for meeting %q", args[0])
			}

			if len(orphans) == 0 {
				fmt.Println("No orphaned sessions.")
				return nil
			}
			for _, rec := range orphans {
				result, err := engine.RecoverOrphan(cmd.Context(), rec)
				if err != nil {
					if errors.Is(err, usecase.ErrNoFrames) {
						fmt.Printf("%s: nothing recoverable, dropped\n", rec.MeetingID)
						continue
					}
					deps.Log.WithError(err).WithField("meeting_id", rec.MeetingID).Error("recovery failed")
					continue
				}
				fmt.Printf("%s: recovered %d frames → %s\n", rec.MeetingID, result.FrameCount, result.VideoPath)
			}
			return nil
		},
	}
}
