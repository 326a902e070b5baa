package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClientConfig configures the session client used by sessionctl.
type ClientConfig struct {
	BaseURL string
	// TokenFile is where the file-backed token store persists the pair.
	TokenFile string
	// RefreshTimeout bounds a single call to the refresh endpoint.
	RefreshTimeout time.Duration
	// RefreshMargin triggers a proactive refresh when exp is closer than this.
	RefreshMargin time.Duration
}

func LoadClient() (ClientConfig, error) {
	c := ClientConfig{
		BaseURL:   strings.TrimRight(strings.TrimSpace(os.Getenv("SESSIONGUARD_URL")), "/"),
		TokenFile: strings.TrimSpace(os.Getenv("SESSIONGUARD_TOKEN_FILE")),
	}

	var errs []error
	c.RefreshTimeout, errs = appendDurationErr(errs, "REFRESH_TIMEOUT")
	c.RefreshMargin, errs = appendDurationErr(errs, "REFRESH_MARGIN")
	if err := joinErrors(errs); err != nil {
		return ClientConfig{}, err
	}

	c.applyDefaults()
	return c, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.TokenFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.TokenFile = filepath.Join(dir, "sessionguard", "tokens.json")
		} else {
			c.TokenFile = ".sessionguard-tokens.json"
		}
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 10 * time.Second
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = 30 * time.Second
	}
}

func (c ClientConfig) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("SESSIONGUARD_URL must be an http(s) URL")
	}
	return nil
}
