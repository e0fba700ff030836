package ports

import (
	"context"
	"time"

	"meetcap/internal/domain"
)

// BrowserDriver is the capability set over one automated browser instance.
// Implementations log and absorb transient failures where the contract says
// an operation is best-effort.
type BrowserDriver interface {
	// Open navigates to url and waits for the load event.
	Open(ctx context.Context, url string, timeout time.Duration) error

	// Evaluate runs js in the page and unmarshals the JSON-serializable
	// result into out. Pass nil to discard the result. It must tolerate
	// mid-navigation errors by returning them rather than panicking.
	Evaluate(ctx context.Context, js string, out any) error

	// FindAndClick clicks the first visible element matching the CSS
	// selector. Reports whether anything was clicked; no-match is not an
	// error.
	FindAndClick(ctx context.Context, selector string) bool

	// ClickByText clicks the first clickable element whose visible text
	// contains any of the given substrings (case-insensitive).
	ClickByText(ctx context.Context, substrings ...string) bool

	// ClickAt issues a raw mouse click at page coordinates.
	ClickAt(ctx context.Context, x, y float64) error

	// TypeText focuses the element matching selector, selects and clears
	// any existing value, then types text key-by-key with a perceptible
	// inter-key delay.
	TypeText(ctx context.Context, selector, text string) error

	// Keyboard sends a modifier+key combination such as "ctrl+shift+u"
	// or a single key such as "c".
	Keyboard(ctx context.Context, shortcut string) error

	// Screenshot writes a PNG of the current viewport to path.
	Screenshot(ctx context.Context, path string) error

	// Close tears the browser down. Idempotent, best-effort.
	Close() error
}

// LaunchOptions configure a browser instance for one session.
type LaunchOptions struct {
	Origin         string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

// BrowserFactory launches one browser per capture session with media
// permissions pre-granted for the meeting origin.
type BrowserFactory interface {
	Launch(ctx context.Context, opts LaunchOptions) (BrowserDriver, error)
}

// PlatformAdapter implements the join and caption-enable sequences for one
// conferencing provider. Adapters are pure sequences of driver operations:
// no filesystem or subprocess access, and they return structured outcomes
// rather than panicking across the engine boundary.
type PlatformAdapter interface {
	Platform() domain.Platform

	// Join drives the page from the meeting URL to an admitted participant.
	Join(ctx context.Context, d BrowserDriver, meetingURL, botName string) (domain.JoinOutcome, error)

	// EnableCaptions turns on the platform's live caption rendering.
	// Best-effort; a failure leaves the session caption-less, not broken.
	EnableCaptions(ctx context.Context, d BrowserDriver)

	// CaptionScript returns the page-evaluated script producing the
	// platform's []CaptionCandidate list.
	CaptionScript() string
}

// AudioConfig describes how host audio should be captured.
type AudioConfig struct {
	Device      string
	InputFormat string
}

// AudioSession is a live host-audio capture writing to a file.
type AudioSession interface {
	// Stop quits the capture gracefully and waits for the output file to
	// finalize.
	Stop() error
}

// AudioCapture starts host-audio capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, outputPath string, cfg AudioConfig) (AudioSession, error)
}

// EncodeRequest describes one frames(+audio) → MP4 encode.
type EncodeRequest struct {
	FramesDir string
	AudioPath string
	VideoPath string
	FrameRate int
}

// Encoder joins numbered PNG frames into a single MP4.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest) error
}
