package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"reframe/internal/config"
	"reframe/internal/queue"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	client *http.Client
}

type jobEnvelope struct {
	Job *queue.Record `json:"job"`
}

type jobListEnvelope struct {
	Jobs []*queue.Record `json:"jobs"`
}

type previewEnvelope struct {
	URL string `json:"url"`
}

type apiErrorEnvelope struct {
	Error string `json:"error"`
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiBase() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return "http://" + cfg.Paths.APIBind, nil
}

func (c *commandContext) getJSON(path string, target any) error {
	base, err := c.apiBase()
	if err != nil {
		return err
	}
	resp, err := c.client.Get(base + path)
	if err != nil {
		return wrapDialError(err, base)
	}
	return decodeResponse(resp, target)
}

func (c *commandContext) postJSON(path string, body, target any) error {
	base, err := c.apiBase()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	resp, err := c.client.Post(base+path, "application/json", reader)
	if err != nil {
		return wrapDialError(err, base)
	}
	return decodeResponse(resp, target)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr apiErrorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if target == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func wrapDialError(err error, base string) error {
	return fmt.Errorf("connect to daemon at %s: %w (start it with `reframed`)", base, err)
}
