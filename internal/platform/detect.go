package platform

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

// Detect classifies a meeting URL by provider. Pure function of its input.
func Detect(rawURL string) domain.Platform {
	url := strings.ToLower(rawURL)
	switch {
	case strings.Contains(url, "zoom.us") || strings.Contains(url, "zoom.com"):
		return domain.PlatformZoom
	case strings.Contains(url, "meet.google.com"):
		return domain.PlatformGoogleMeet
	case strings.Contains(url, "teams.microsoft.com") || strings.Contains(url, "teams.live.com"):
		return domain.PlatformTeams
	case strings.Contains(url, "webex.com"):
		return domain.PlatformWebex
	default:
		return domain.PlatformUnknown
	}
}

// Options tune the shared join flow. Zero values select production defaults.
type Options struct {
	AdmissionTimeout time.Duration
	PollInterval     time.Duration
	DebugDir         string
}

// AdapterFor returns the adapter for a detected platform.
func AdapterFor(p domain.Platform, opts Options, log *logrus.Entry) (ports.PlatformAdapter, bool) {
	switch p {
	case domain.PlatformGoogleMeet:
		return NewGoogleMeet(opts, log), true
	case domain.PlatformZoom:
		return NewZoom(opts, log), true
	case domain.PlatformTeams:
		return NewTeams(opts, log), true
	case domain.PlatformWebex:
		return NewWebex(opts, log), true
	default:
		return nil, false
	}
}
