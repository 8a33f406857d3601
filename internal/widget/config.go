package widget

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultEndpoint = "http://127.0.0.1:8000/chat"
	DefaultUserID   = "student_001"
	DefaultTimeout  = 30 * time.Second
)

// Config is everything a controller needs to know about its endpoint.
// A zero Timeout disables the per-request deadline.
type Config struct {
	Endpoint string
	UserID   string
	Timeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		UserID:   DefaultUserID,
		Timeout:  DefaultTimeout,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return errors.Wrapf(err, "invalid endpoint %q", c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("endpoint %q must use http or https", c.Endpoint)
	}
	if u.Host == "" {
		return errors.Errorf("endpoint %q has no host", c.Endpoint)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user id is required")
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
