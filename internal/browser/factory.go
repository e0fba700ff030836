package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"meetcap/internal/ports"
)

// Factory launches one Chromium instance per capture session.
type Factory struct {
	bin      string
	headless bool
	log      *logrus.Entry
}

func NewFactory(bin string, headless bool, log *logrus.Entry) *Factory {
	return &Factory{bin: bin, headless: headless, log: log}
}

// Launch starts Chromium with fake media devices, grants the meeting origin
// its media permissions, and returns a driver bound to a fresh page.
func (f *Factory) Launch(ctx context.Context, opts ports.LaunchOptions) (ports.BrowserDriver, error) {
	l := launcher.New().
		Headless(opts.Headless && f.headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("use-fake-ui-for-media-stream").
		Set("use-fake-device-for-media-stream").
		Set("autoplay-policy", "no-user-gesture-required")
	if f.bin != "" {
		l = l.Bin(f.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	if opts.Origin != "" {
		grant := proto.BrowserGrantPermissions{
			Origin: opts.Origin,
			Permissions: []proto.BrowserPermissionType{
				proto.BrowserPermissionTypeAudioCapture,
				proto.BrowserPermissionTypeVideoCapture,
				proto.BrowserPermissionTypeNotifications,
			},
		}
		if err := grant.Call(b); err != nil {
			f.log.WithError(err).Warn("permission grant failed")
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		f.log.WithError(err).Warn("viewport override failed")
	}

	return &Driver{browser: b, page: page, log: f.log}, nil
}

var _ ports.BrowserFactory = (*Factory)(nil)
