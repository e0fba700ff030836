package platform

import (
	"context"
	"regexp"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

// zoomJoinPath matches the /j/<id> share link form.
var zoomJoinPath = regexp.MustCompile(`/j/(\d+)`)

// Zoom joins zoom.us meetings through the web client.
type Zoom struct {
	flow flow
	log  *logrus.Entry
}

func NewZoom(opts Options, log *logrus.Entry) *Zoom {
	a := &Zoom{log: log}
	a.flow = flow{
		platform:   domain.PlatformZoom,
		opts:       opts,
		log:        log,
		rewriteURL: RewriteZoomURL,
		nameSelectors: []string{
			`input#input-for-name`,
			`input[aria-label*="name" i]`,
			`input[placeholder*="name" i]`,
		},
		postAdmission: func(ctx context.Context, d ports.BrowserDriver) {
			// The web client often interposes a "Join Audio" dialog
			// after admission.
			if d.ClickByText(ctx, "join audio") {
				d.ClickByText(ctx, "computer audio")
			} else {
				d.ClickByText(ctx, "computer audio")
			}
		},
	}
	return a
}

// RewriteZoomURL maps a /j/<id> share link onto the web-client join path so
// the browser is not bounced to the desktop app.
func RewriteZoomURL(url string) string {
	return zoomJoinPath.ReplaceAllString(url, "/wc/$1/join")
}

func (a *Zoom) Platform() domain.Platform { return domain.PlatformZoom }

func (a *Zoom) Join(ctx context.Context, d ports.BrowserDriver, meetingURL, botName string) (domain.JoinOutcome, error) {
	return a.flow.run(ctx, d, meetingURL, botName)
}

// EnableCaptions clicks the CC control, walking the "Show Subtitle" submenu
// when one appears, with the overflow "More" menu as fallback.
func (a *Zoom) EnableCaptions(ctx context.Context, d ports.BrowserDriver) {
	if d.FindAndClick(ctx, `button[aria-label*="closed caption" i], button[aria-label*="captions" i]`) {
		d.ClickByText(ctx, "show subtitle", "show captions")
		return
	}
	if d.ClickByText(ctx, "more") {
		d.ClickByText(ctx, "show subtitle", "captions")
	}
}

func (a *Zoom) CaptionScript() string { return zoomCaptionScript }
