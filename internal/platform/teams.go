package platform

import (
	"context"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

// Teams joins teams.microsoft.com / teams.live.com meetings through the
// browser client. The prejoin page is React-rendered, so the name field only
// accepts the keyboard typing path.
type Teams struct {
	flow flow
	log  *logrus.Entry
}

func NewTeams(opts Options, log *logrus.Entry) *Teams {
	a := &Teams{log: log}
	a.flow = flow{
		platform: domain.PlatformTeams,
		opts:     opts,
		log:      log,
		preJoin: func(ctx context.Context, d ports.BrowserDriver) {
			// The landing page pushes the desktop app; stay in the browser.
			d.ClickByText(ctx, "continue on this browser", "use the web app instead")
		},
		nameSelectors: []string{
			`input[data-tid="prejoin-display-name"]`,
			`input[placeholder*="name" i]`,
			`input[aria-label*="name" i]`,
		},
		extraDisableAV: func(ctx context.Context, d ports.BrowserDriver) {
			// When the aria-labelled toggles are absent the prejoin screen
			// sometimes renders a bare checkbox for the camera.
			d.FindAndClick(ctx, `input[type="checkbox"]`)
			d.ClickByText(ctx, "don't use audio")
		},
	}
	return a
}

func (a *Teams) Platform() domain.Platform { return domain.PlatformTeams }

func (a *Teams) Join(ctx context.Context, d ports.BrowserDriver, meetingURL, botName string) (domain.JoinOutcome, error) {
	return a.flow.run(ctx, d, meetingURL, botName)
}

// EnableCaptions walks the "More actions" menu to the live-captions entry,
// with the Ctrl+Shift+U shortcut as fallback.
func (a *Teams) EnableCaptions(ctx context.Context, d ports.BrowserDriver) {
	if d.ClickByText(ctx, "more actions", "more") {
		if d.ClickByText(ctx, "language and speech") {
			d.ClickByText(ctx, "turn on live captions")
			return
		}
		if d.ClickByText(ctx, "turn on live captions") {
			return
		}
	}
	if err := d.Keyboard(ctx, "ctrl+shift+u"); err != nil {
		a.log.WithError(err).Debug("caption shortcut failed")
	}
}

func (a *Teams) CaptionScript() string { return teamsCaptionScript }
