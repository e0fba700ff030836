package platform

import (
	"context"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

// GoogleMeet joins meet.google.com meetings as an anonymous guest.
type GoogleMeet struct {
	flow flow
	log  *logrus.Entry
}

func NewGoogleMeet(opts Options, log *logrus.Entry) *GoogleMeet {
	a := &GoogleMeet{log: log}
	a.flow = flow{
		platform: domain.PlatformGoogleMeet,
		opts:     opts,
		log:      log,
		nameSelectors: []string{
			`input[aria-label*="name" i]`,
			`input[placeholder*="name" i]`,
			`input[type="text"]`,
		},
	}
	return a
}

func (a *GoogleMeet) Platform() domain.Platform { return domain.PlatformGoogleMeet }

func (a *GoogleMeet) Join(ctx context.Context, d ports.BrowserDriver, meetingURL, botName string) (domain.JoinOutcome, error) {
	return a.flow.run(ctx, d, meetingURL, botName)
}

// EnableCaptions clicks the captions control, falling back to the "c"
// shortcut Meet binds to it.
func (a *GoogleMeet) EnableCaptions(ctx context.Context, d ports.BrowserDriver) {
	selectors := []string{
		`button[aria-label*="captions" i]`,
		`button[aria-label*="subtitles" i]`,
		`button[aria-label*="cc" i]`,
	}
	for _, sel := range selectors {
		if d.FindAndClick(ctx, sel) {
			return
		}
	}
	if err := d.Keyboard(ctx, "c"); err != nil {
		a.log.WithError(err).Debug("caption shortcut failed")
	}
}

func (a *GoogleMeet) CaptionScript() string { return meetCaptionScript }
