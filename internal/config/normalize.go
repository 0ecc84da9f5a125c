package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.PreviewBind = strings.TrimSpace(c.Paths.PreviewBind)
	if c.Paths.PreviewBind == "" {
		c.Paths.PreviewBind = defaultPreviewBind
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if strings.TrimSpace(c.Encoder.VideoCodec) == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Encoder.AudioCodec) == "" {
		c.Encoder.AudioCodec = defaultAudioCodec
	}
	if strings.TrimSpace(c.Encoder.AudioBitrate) == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
	}
	if c.Encoder.CRF == 0 {
		c.Encoder.CRF = defaultCRF
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
