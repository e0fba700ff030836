package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"meetcap/internal/bootstrap"
)

// Dependencies carries the wired service graph into the commands.
type Dependencies struct {
	Services bootstrap.Services
	Log      *logrus.Entry
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meetcap",
		Short: "Self-hosted meeting capture agent",
		Long: "meetcap joins a video-conferencing meeting with a headless browser,\n" +
			"records the rendered screen and host audio, scrapes live captions,\n" +
			"and finalizes an MP4/MP3/transcript artifact bundle.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newJoinCmd(deps))
	rootCmd.AddCommand(newLeaveCmd(deps))
	rootCmd.AddCommand(newRecoverCmd(deps))
	rootCmd.AddCommand(newDoctorCmd(deps))

	return rootCmd
}
