package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

const (
	defaultAdmissionTimeout = 120 * time.Second
	defaultPollInterval     = time.Second
	navigateTimeout         = 60 * time.Second
)

// dismissTexts are the consent/intro dialogs every provider sprinkles over
// the prejoin page. All clicks are best-effort.
var dismissTexts = []string{"got it", "accept cookies", "accept all", "i agree", "dismiss"}

// submitTexts match the visible label of the join control across providers.
var submitTexts = []string{"join now", "ask to join", "join meeting", "continue without"}

// flow is the shared join state machine:
//
//	navigate → dismiss_dialogs → enter_name → disable_av → submit_join → poll
//
// Adapters specialize it through the hook fields; everything else is common.
type flow struct {
	platform domain.Platform
	opts     Options
	log      *logrus.Entry

	// rewriteURL maps the public meeting URL to the web-client URL.
	rewriteURL func(string) string
	// preJoin runs after navigation, before the common dialog sweep
	// (Teams "Continue on this browser", Webex browser-app link).
	preJoin func(ctx context.Context, d ports.BrowserDriver)
	// nameSelectors locate the display-name input, tried in order.
	nameSelectors []string
	// extraDisableAV runs after the aria-label toggle sweep.
	extraDisableAV func(ctx context.Context, d ports.BrowserDriver)
	// postAdmission runs once after the probe reports in_meeting
	// (Zoom "Join Audio" dialog).
	postAdmission func(ctx context.Context, d ports.BrowserDriver)
}

func (f *flow) admissionTimeout() time.Duration {
	if f.opts.AdmissionTimeout > 0 {
		return f.opts.AdmissionTimeout
	}
	return defaultAdmissionTimeout
}

func (f *flow) pollInterval() time.Duration {
	if f.opts.PollInterval > 0 {
		return f.opts.PollInterval
	}
	return defaultPollInterval
}

// run drives the whole join sequence and returns a structured outcome. It
// never panics across the engine boundary; driver trouble surfaces as a
// failed outcome.
func (f *flow) run(ctx context.Context, d ports.BrowserDriver, meetingURL, botName string) (domain.JoinOutcome, error) {
	url := meetingURL
	if f.rewriteURL != nil {
		url = f.rewriteURL(meetingURL)
	}

	if err := d.Open(ctx, url, navigateTimeout); err != nil {
		return domain.JoinFailed, fmt.Errorf("open meeting page: %w", err)
	}
	f.debugShot(ctx, d, 1, "loaded")

	if f.preJoin != nil {
		f.preJoin(ctx, d)
	}

	for _, text := range dismissTexts {
		d.ClickByText(ctx, text)
	}

	f.enterName(ctx, d, botName)
	f.debugShot(ctx, d, 2, "named")

	f.disableAV(ctx, d)
	if f.extraDisableAV != nil {
		f.extraDisableAV(ctx, d)
	}

	d.ClickByText(ctx, submitTexts...)
	f.debugShot(ctx, d, 3, "submitted")

	outcome := f.pollAdmission(ctx, d)
	if outcome != domain.JoinSucceeded {
		return outcome, nil
	}

	if f.postAdmission != nil {
		f.postAdmission(ctx, d)
	}
	f.debugShot(ctx, d, 4, "admitted")
	return domain.JoinSucceeded, nil
}

func (f *flow) enterName(ctx context.Context, d ports.BrowserDriver, botName string) {
	for _, selector := range f.nameSelectors {
		if err := d.TypeText(ctx, selector, botName); err == nil {
			return
		}
	}
	f.log.Warn("no name input found; joining without a display name")
}

// disableAV reads the mic/camera toggle state in-page and clicks only the
// toggles that are currently on. Clicking blind would turn muted devices
// back on.
func (f *flow) disableAV(ctx context.Context, d ports.BrowserDriver) {
	var toggles []togglePoint
	if err := d.Evaluate(ctx, avToggleScript, &toggles); err != nil {
		f.log.WithError(err).Debug("av toggle probe failed")
		return
	}
	for _, p := range toggles {
		if err := d.ClickAt(ctx, p.X, p.Y); err != nil {
			f.log.WithError(err).Debug("av toggle click failed")
		}
	}
}

// pollAdmission classifies the page once per interval until the meeting is
// entered, the page rejects us, or the deadline passes. A lingering prejoin
// page gets the submit click re-issued; the success transition is taken
// exactly once, on the first in_meeting report.
func (f *flow) pollAdmission(ctx context.Context, d ports.BrowserDriver) domain.JoinOutcome {
	deadline := time.Now().Add(f.admissionTimeout())
	ticker := time.NewTicker(f.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.JoinTimedOut
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return domain.JoinTimedOut
		}

		var probe struct {
			State domain.AdmissionState `json:"state"`
		}
		if err := d.Evaluate(ctx, admissionProbeScript, &probe); err != nil {
			f.log.WithError(err).Debug("admission probe failed")
			continue
		}

		switch probe.State {
		case domain.AdmissionInMeeting:
			return domain.JoinSucceeded
		case domain.AdmissionRejected:
			return domain.JoinRejected
		case domain.AdmissionPrejoin:
			d.ClickByText(ctx, submitTexts...)
		case domain.AdmissionWaiting, domain.AdmissionUnknown:
		}
	}
}

func (f *flow) debugShot(ctx context.Context, d ports.BrowserDriver, step int, label string) {
	if f.opts.DebugDir == "" {
		return
	}
	path := filepath.Join(f.opts.DebugDir, fmt.Sprintf("%s_step%d_%s.png", f.platform, step, label))
	if err := d.Screenshot(ctx, path); err != nil {
		f.log.WithError(err).Debug("debug capture failed")
	}
}

type togglePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
