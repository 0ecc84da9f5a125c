package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	if c.Paths.PreviewBind == "" {
		return errors.New("paths.preview_bind must be set")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return fmt.Errorf("encoder.crf must be between 0 and 51, got %d", c.Encoder.CRF)
	}
	return nil
}
