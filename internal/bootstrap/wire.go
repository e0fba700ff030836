package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"meetcap/internal/browser"
	"meetcap/internal/config"
	"meetcap/internal/domain"
	"meetcap/internal/media"
	"meetcap/internal/platform"
	"meetcap/internal/ports"
	"meetcap/internal/transcribe"
	"meetcap/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Engine      *usecase.Engine
	Transcriber *transcribe.Client
	Config      config.Config
}

// platformResolver adapts the platform package to the engine's resolver
// contract.
type platformResolver struct {
	opts platform.Options
	log  *logrus.Entry
}

func (r platformResolver) Detect(url string) domain.Platform {
	return platform.Detect(url)
}

func (r platformResolver) Adapter(p domain.Platform) (ports.PlatformAdapter, bool) {
	return platform.AdapterFor(p, r.opts, r.log)
}

// Build wires all capture dependencies for the current runtime.
func Build(log *logrus.Entry) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	platformOpts := platform.Options{}
	if cfg.DebugCaptures {
		debugDir := filepath.Join(cfg.RecordingsRoot, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err == nil {
			platformOpts.DebugDir = debugDir
		}
	}

	engine := usecase.NewEngine(
		usecase.Config{
			RecordingsRoot: cfg.RecordingsRoot,
			BotName:        cfg.BotName,
			Audio: ports.AudioConfig{
				Device:      cfg.Audio.Device,
				InputFormat: cfg.Audio.InputFormat,
			},
			Headless: cfg.Browser.Headless,
		},
		platformResolver{opts: platformOpts, log: log},
		browser.NewFactory(cfg.Browser.Bin, cfg.Browser.Headless, log),
		media.NewFFmpegAudio(cfg.FFmpeg.Command, log),
		media.NewFFmpegEncoder(cfg.FFmpeg.Command, log),
		log,
	)

	return Services{
		Engine:      engine,
		Transcriber: transcribe.NewClient(cfg.OpenAIAPIKey),
		Config:      cfg,
	}, nil
}
