package client

import (
	"errors"
	"fmt"
	"grepapp/internal/adapter/outbound/grepapp"
	"grepapp/internal/version"
	"strings"
	"time"
)

// Default configuration values.
const (
	// DefaultAPIURL is the public grep.app endpoint.
	DefaultAPIURL = grepapp.DefaultBaseURL

	// DefaultTimeout bounds each page request.
	DefaultTimeout = 20 * time.Second
)

// Supported URL schemes.
const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Config holds the client configuration for talking to the search service.
type Config struct {
	// APIURL is the service root (e.g., "https://grep.app").
	// Must include the scheme (http:// or https://).
	APIURL string

	// Timeout is the maximum duration of a single page request.
	// Must be a positive duration.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// RateLimit caps requests per second. Zero disables throttling.
	RateLimit float64

	// RateBurst is the number of requests allowed at once under RateLimit.
	RateBurst int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		APIURL:    DefaultAPIURL,
		Timeout:   DefaultTimeout,
		UserAgent: version.GetVersion().UserAgent(),
		RateBurst: 1,
	}
}

// Validate validates the configuration and returns an error if any field is invalid.
//
// Validation rules:
//   - APIURL must not be empty and must start with http:// or https://
//   - Timeout must be positive
//   - UserAgent must not be empty
//   - RateLimit and RateBurst must not be negative
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("invalid configuration: API URL cannot be empty")
	}

	if !strings.HasPrefix(c.APIURL, schemeHTTP) && !strings.HasPrefix(c.APIURL, schemeHTTPS) {
		return fmt.Errorf("invalid configuration: API URL must have http:// or https:// scheme, got %q", c.APIURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("invalid configuration: timeout must be positive, got %v", c.Timeout)
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		return errors.New("invalid configuration: user agent cannot be empty")
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("invalid configuration: rate limit must not be negative, got %v", c.RateLimit)
	}

	if c.RateBurst < 0 {
		return fmt.Errorf("invalid configuration: rate burst must not be negative, got %d", c.RateBurst)
	}

	return nil
}
