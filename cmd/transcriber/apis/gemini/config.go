package gemini

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	BaseURLDefault           = "https://generativelanguage.googleapis.com"
	ModelDefault             = "gemini-2.5-flash"
	PollIntervalDefault      = 5 * time.Second
	MaxProcessingWaitDefault = 300 * time.Second
	RequestTimeoutDefault    = 10 * time.Minute
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// How often to check whether an uploaded file is ready.
	PollInterval time.Duration
	// How long to wait at most for an uploaded file to become ready.
	MaxProcessingWait time.Duration
	// Timeout applied to each HTTP request.
	RequestTimeout time.Duration
}

func (c Config) IsValid() error {
	if c.APIKey == "" {
		return fmt.Errorf("invalid APIKey: should not be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("invalid Model: should not be empty")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BaseURL parsing failed: %w", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BaseURL parsing failed: invalid scheme %q", u.Scheme)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid PollInterval: should be positive")
	}

	if c.MaxProcessingWait < c.PollInterval {
		return fmt.Errorf("invalid MaxProcessingWait: should not be less than PollInterval")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid RequestTimeout: should be positive")
	}

	return nil
}

func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = ModelDefault
	}
	if c.BaseURL == "" {
		c.BaseURL = BaseURLDefault
	}
	if c.PollInterval == 0 {
		c.PollInterval = PollIntervalDefault
	}
	if c.MaxProcessingWait == 0 {
		c.MaxProcessingWait = MaxProcessingWaitDefault
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = RequestTimeoutDefault
	}
}

func (c *Config) FromEnv() {
	c.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Model = os.Getenv("GEMINI_MODEL")
	c.BaseURL = os.Getenv("GEMINI_BASE_URL")
	c.PollInterval, _ = time.ParseDuration(os.Getenv("GEMINI_POLL_INTERVAL"))
	c.MaxProcessingWait, _ = time.ParseDuration(os.Getenv("GEMINI_MAX_PROCESSING_WAIT"))
	c.RequestTimeout, _ = time.ParseDuration(os.Getenv("GEMINI_REQUEST_TIMEOUT"))
}

func (c Config) ToEnv() []string {
	return []string{
		fmt.Sprintf("GEMINI_API_KEY=%s", c.APIKey),
		fmt.Sprintf("GEMINI_MODEL=%s", c.Model),
		fmt.Sprintf("GEMINI_BASE_URL=%s", c.BaseURL),
		fmt.Sprintf("GEMINI_POLL_INTERVAL=%s", c.PollInterval),
		fmt.Sprintf("GEMINI_MAX_PROCESSING_WAIT=%s", c.MaxProcessingWait),
		fmt.Sprintf("GEMINI_REQUEST_TIMEOUT=%s", c.RequestTimeout),
	}
}

func (c Config) ToMap() map[string]any {
	return map[string]any{
		"gemini_api_key":             c.APIKey,
		"gemini_model":               c.Model,
		"gemini_base_url":            c.BaseURL,
		"gemini_poll_interval":       c.PollInterval.String(),
		"gemini_max_processing_wait": c.MaxProcessingWait.String(),
		"gemini_request_timeout":     c.RequestTimeout.String(),
	}
}
