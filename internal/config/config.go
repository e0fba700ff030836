package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config stores runtime configuration for the capture agent.
type Config struct {
	RecordingsRoot string
	BotName        string
	OpenAIAPIKey   string

	Audio   AudioConfig
	Browser BrowserConfig
	FFmpeg  FFmpegConfig

	DebugCaptures bool
}

type AudioConfig struct {
	Device      string
	InputFormat string
}

type BrowserConfig struct {
	Bin      string
	Headless bool
}

type FFmpegConfig struct {
	Command string
}

type fileConfig struct {
	RecordingsRoot   string `toml:"recordings_root"`
	BotName          string `toml:"default_bot_name"`
	OpenAIAPIKey     string `toml:"openai_api_key"`
	AudioDevice      string `toml:"audio_device"`
	AudioInputFormat string `toml:"audio_input_format"`
	BrowserBin       string `toml:"browser_bin"`
	FFmpegCommand    string `toml:"ffmpeg_command"`
	DebugCaptures    bool   `toml:"debug_captures"`
}

// Load resolves configuration from an optional TOML file layered under
// environment variables, with sensible defaults. The recordings root is
// created if missing.
func Load() (Config, error) {
	cfg := Config{
		RecordingsRoot: "recordings",
		BotName:        "Meeting Notetaker",
		Audio: AudioConfig{
			Device:      defaultAudioDevice(),
			InputFormat: defaultAudioFormat(),
		},
		Browser: BrowserConfig{Headless: true},
		FFmpeg:  FFmpegConfig{Command: "ffmpeg"},
	}

	if path := configFilePath(); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err == nil {
			applyFileConfig(&cfg, fc)
		}
	}

	applyEnvOverrides(&cfg)

	if err := os.MkdirAll(cfg.RecordingsRoot, 0o755); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.RecordingsRoot != "" {
		cfg.RecordingsRoot = expandTilde(fc.RecordingsRoot)
	}
	if fc.BotName != "" {
		cfg.BotName = fc.BotName
	}
	if fc.OpenAIAPIKey != "" {
		cfg.OpenAIAPIKey = fc.OpenAIAPIKey
	}
	if fc.AudioDevice != "" {
		cfg.Audio.Device = fc.AudioDevice
	}
	if fc.AudioInputFormat != "" {
		cfg.Audio.InputFormat = fc.AudioInputFormat
	}
	if fc.BrowserBin != "" {
		cfg.Browser.Bin = fc.BrowserBin
	}
	if fc.FFmpegCommand != "" {
		cfg.FFmpeg.Command = fc.FFmpegCommand
	}
	if fc.DebugCaptures {
		cfg.DebugCaptures = true
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MEETCAP_RECORDINGS_ROOT")); v != "" {
		cfg.RecordingsRoot = expandTilde(v)
	}
	if v := strings.TrimSpace(os.Getenv("MEETCAP_BOT_NAME")); v != "" {
		cfg.BotName = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MEETCAP_AUDIO_DEVICE")); v != "" {
		cfg.Audio.Device = v
	}
	if v := strings.TrimSpace(os.Getenv("MEETCAP_AUDIO_INPUT_FORMAT")); v != "" {
		cfg.Audio.InputFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("MEETCAP_BROWSER_BIN")); v != "" {
		cfg.Browser.Bin = v
	}
	if v := strings.TrimSpace(os.Getenv("MEETCAP_FFMPEG_COMMAND")); v != "" {
		cfg.FFmpeg.Command = v
	}
	cfg.Browser.Headless = envOrDefaultBool("MEETCAP_HEADLESS", cfg.Browser.Headless)
	cfg.DebugCaptures = envOrDefaultBool("MEETCAP_DEBUG_CAPTURES", cfg.DebugCaptures)
}

func defaultAudioDevice() string {
	if runtime.GOOS == "darwin" {
		return ":0"
	}
	return "default"
}

func defaultAudioFormat() string {
	if runtime.GOOS == "darwin" {
		return "avfoundation"
	}
	return "pulse"
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "meetcap")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "meetcap")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
