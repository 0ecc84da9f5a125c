package ffmpeg

import (
	"path/filepath"
	"strings"

	"reframe/internal/services"
)

// Resolution is an explicit output frame size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Request describes one transcode. When KeepOriginal is set, Resolution and
// FPS are ignored even if populated.
type Request struct {
	InputPath    string      `json:"input_path"`
	OutputPath   string      `json:"output_path"`
	Format       string      `json:"format"`
	Resolution   *Resolution `json:"resolution,omitempty"`
	FPS          int         `json:"fps,omitempty"`
	KeepOriginal bool        `json:"keep_original"`
}

// Policy is the baseline codec/quality configuration applied to every
// conversion independent of the target container.
type Policy struct {
	VideoCodec   string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// DefaultPolicy mirrors the repository configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		VideoCodec:   "libx264",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	}
}

// Validate checks the request fields that must hold before any process is
// spawned.
func (r Request) Validate() error {
	input := strings.TrimSpace(r.InputPath)
	if input == "" {
		return services.Wrap(services.ErrInvalidRequest, "ffmpeg", "validate", "input path is empty", nil)
	}
	if !filepath.IsAbs(input) {
		return services.Wrap(services.ErrInvalidRequest, "ffmpeg", "validate", "input path must be absolute", nil)
	}
	output := strings.TrimSpace(r.OutputPath)
	if output == "" {
		return services.Wrap(services.ErrInvalidRequest, "ffmpeg", "validate", "output path is empty", nil)
	}
	if !filepath.IsAbs(output) {
		return services.Wrap(services.ErrInvalidRequest, "ffmpeg", "validate", "output path must be absolute", nil)
	}
	if _, err := muxerFor(r.Format); err != nil {
		return err
	}
	return nil
}
