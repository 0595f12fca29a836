package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var knownBackends = map[string]bool{
	"memory": true,
	"file":   true,
	"sqlite": true,
	"badger": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that must stop startup from values
// that were clamped or defaulted.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// ValidateTiered checks the config and clamps out-of-range numeric values
// in place. Clamped values are reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var res ValidationResult
	fatal := func(format string, args ...any) {
		res.Fatals = append(res.Fatals, fmt.Errorf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Errorf(format, args...))
	}

	if c.EndpointURL == "" {
		fatal("endpoint_url is required")
	} else {
		u, err := url.Parse(c.EndpointURL)
		if err != nil {
			fatal("endpoint_url %q is not a valid URL: %w", c.EndpointURL, err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			fatal("endpoint_url scheme must be http or https, got %q", u.Scheme)
		}
	}

	if c.Secret == "" {
		warn("secret is not set, using default fingerprint salt %q", DefaultSecret)
	} else {
		for _, r := range c.Secret {
			if unicode.IsControl(r) {
				fatal("secret contains control characters")
				break
			}
		}
	}

	if strings.TrimSpace(c.PackageField) == "" {
		warn("package_field is empty, using \"package\"")
		c.PackageField = "package"
	}

	c.TimeoutSeconds = clamp(&res, "timeout_seconds", c.TimeoutSeconds, 1, 300)
	c.MaxRetries = clamp(&res, "max_retries", c.MaxRetries, 0, 5)
	c.Concurrency = clamp(&res, "concurrency", c.Concurrency, 1, 16)

	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	if !knownBackends[c.CacheBackend] {
		fatal("cache_backend %q is not valid (use memory, file, sqlite or badger)", c.CacheBackend)
	} else if c.CacheBackend != "memory" && c.CachePath == "" {
		fatal("cache_path is required for the %s backend", c.CacheBackend)
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		fatal("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		fatal("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	return res
}

func clamp(res *ValidationResult, key string, v, lo, hi int) int {
	switch {
	case v < lo:
		res.Warnings = append(res.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", key, v, lo))
		return lo
	case v > hi:
		res.Warnings = append(res.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", key, v, hi))
		return hi
	}
	return v
}
