// Package config loads configuration for the mock backend and the browser
// suites from environment variables and CLI flags, validates it, and
// provides defaults.
//
// Browser suites read only the environment. The mockserver command adds
// flags (--scenario, --addr, --passthrough, --upstream) that override the
// matching env vars.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListenAddr     = ":8090"
	defaultTimezone       = "Asia/Tokyo"
	defaultSnapshotDir    = "testdata/snapshots"
	defaultBrowserTimeout = 5 * time.Second
	defaultAWSRegion      = "auto"
)

// Config holds all configuration.
type Config struct {
	// Frontend under test
	FrontendBaseURL string // FRONTEND_BASE_URL; empty skips browser suites
	Timezone        string // MOCK_TIMEZONE
	BrowserTimeout  time.Duration

	// Snapshots
	SnapshotDir     string
	UpdateSnapshots bool

	// Mock backend
	ListenAddr   string
	ScenarioPath string
	PassThrough  bool
	UpstreamURL  string // MOCK_UPSTREAM_URL; where unmatched requests are proxied

	LogLevel string

	// Artifact upload (optional; enabled when ARTIFACT_BUCKET is set)
	RunID              string
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	ArtifactBucket     string // ARTIFACT_BUCKET
	ArtifactPublicURL  string // ARTIFACT_PUBLIC_URL
}

// Flags are the mockserver command-line overrides. Zero values mean "not set".
type Flags struct {
	ScenarioPath string
	Addr         string
	PassThrough  bool
	Upstream     string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses the mockserver flags from args (usually os.Args[1:]).
func ParseFlags(name string, args []string, output io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ScenarioPath, "scenario", "", "YAML scenario file (overrides MOCK_SCENARIO)")
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8090, overrides LISTEN_ADDR)")
	fs.BoolVar(&f.PassThrough, "passthrough", false, "Forward unmatched requests instead of failing them")
	fs.StringVar(&f.Upstream, "upstream", "", "Upstream for pass-through requests (implies --passthrough)")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if fs.NArg() > 0 {
		return Flags{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables, applies flag
// overrides and validates the result.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}

	cfg.FrontendBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FRONTEND_BASE_URL")), "/")
	cfg.Timezone = getEnvOrDefault("MOCK_TIMEZONE", defaultTimezone)
	cfg.BrowserTimeout = parseDurationOrDefault("BROWSER_TIMEOUT", defaultBrowserTimeout)

	cfg.SnapshotDir = getEnvOrDefault("SNAPSHOT_DIR", defaultSnapshotDir)
	cfg.UpdateSnapshots = parseBoolOrDefault("UPDATE_SNAPSHOTS", false)

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", defaultListenAddr)
	if f.Addr != "" {
		cfg.ListenAddr = f.Addr
	}
	cfg.ScenarioPath = strings.TrimSpace(os.Getenv("MOCK_SCENARIO"))
	if f.ScenarioPath != "" {
		cfg.ScenarioPath = f.ScenarioPath
	}
	cfg.PassThrough = parseBoolOrDefault("MOCK_PASSTHROUGH", false) || f.PassThrough
	cfg.UpstreamURL = strings.TrimSpace(os.Getenv("MOCK_UPSTREAM_URL"))
	if f.Upstream != "" {
		cfg.UpstreamURL = f.Upstream
	}
	if cfg.UpstreamURL != "" {
		cfg.PassThrough = true
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RunID = getEnvOrDefault("RUN_ID", time.Now().UTC().Format("20060102-150405")+"-"+uuid.NewString()[:8])
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultAWSRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.ArtifactBucket = strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET"))
	cfg.ArtifactPublicURL = strings.TrimSpace(os.Getenv("ARTIFACT_PUBLIC_URL"))
	if cfg.ArtifactPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.ArtifactBucket != "" {
		cfg.ArtifactPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.ArtifactBucket
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every configured value is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.FrontendBaseURL != "" {
		if err := validateAbsURL(c.FrontendBaseURL); err != nil {
			errs = append(errs, "FRONTEND_BASE_URL "+err.Error())
		}
	}
	if c.UpstreamURL != "" {
		if err := validateAbsURL(c.UpstreamURL); err != nil {
			errs = append(errs, "MOCK_UPSTREAM_URL "+err.Error())
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("MOCK_TIMEZONE %q is not a known time zone", c.Timezone))
	}
	if c.BrowserTimeout <= 0 {
		errs = append(errs, "BROWSER_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if strings.TrimSpace(c.SnapshotDir) == "" {
		errs = append(errs, "SNAPSHOT_DIR must not be empty")
	}

	// Artifact upload: credentials must come as a pair.
	if c.ArtifactBucket != "" && (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ArtifactsEnabled reports whether snapshot mismatches should be uploaded.
func (c *Config) ArtifactsEnabled() bool {
	return c.ArtifactBucket != ""
}

// BrowserSuitesEnabled reports whether a frontend is available to test.
func (c *Config) BrowserSuitesEnabled() bool {
	return c.FrontendBaseURL != ""
}

// PrintStartupSummary prints a human-readable summary of the mock server
// configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "mockserver starting...")
	if c.ScenarioPath != "" {
		fmt.Fprintf(w, "  Scenario:    %s\n", c.ScenarioPath)
	} else {
		fmt.Fprintln(w, "  Scenario:    (none, every request is unmatched)")
	}
	switch {
	case c.UpstreamURL != "":
		fmt.Fprintf(w, "  Unmatched:   proxied to %s\n", c.UpstreamURL)
	case c.PassThrough:
		fmt.Fprintln(w, "  Unmatched:   pass-through without upstream (502)")
	default:
		fmt.Fprintln(w, "  Unmatched:   fail (404)")
	}
	fmt.Fprintf(w, "  Listen:      %s\n", c.ListenAddr)
	fmt.Fprintln(w, "")
}

func validateAbsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http(s) URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
