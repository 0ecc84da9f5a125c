package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	defaultLogDir       = "~/.local/share/reframe/logs"
	defaultAPIBind      = "127.0.0.1:7319"
	defaultPreviewBind  = "127.0.0.1:7320"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultVideoCodec   = "libx264"
	defaultCRF          = 23
	defaultAudioCodec   = "aac"
	defaultAudioBitrate = "128k"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   DefaultOutputDir(),
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
			PreviewBind: defaultPreviewBind,
		},
		Encoder: Encoder{
			VideoCodec:   defaultVideoCodec,
			CRF:          defaultCRF,
			AudioCodec:   defaultAudioCodec,
			AudioBitrate: defaultAudioBitrate,
		},
		Preview: Preview{
			LazyStart: true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// DefaultOutputDir picks the conventional per-platform destination for
// converted files: Downloads on macOS, Desktop on Windows, ~/Downloads
// elsewhere.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/Downloads"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Downloads")
	case "windows":
		return filepath.Join(home, "Desktop")
	default:
		return filepath.Join(home, "Downloads")
	}
}
