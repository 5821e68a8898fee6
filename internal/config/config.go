package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
)

// Config holds every tunable of the console
type Config struct {
	// BaseURL is the BrowserKube API root, e.g. https://farm.example.com/browserkube
	BaseURL              string        `yaml:"baseUrl"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	CreateSessionTimeout time.Duration `yaml:"createSessionTimeout"`
	DeleteSessionTimeout time.Duration `yaml:"deleteSessionTimeout"`
	ToastAutoClose       time.Duration `yaml:"toastAutoClose"`

	CommandsPageSize   int           `yaml:"commandsPageSize"`
	CommandsThrottle   time.Duration `yaml:"commandsThrottle"`
	ScrollDebounce     time.Duration `yaml:"scrollDebounce"`
	SessionDuration    time.Duration `yaml:"sessionDuration"`
	ResultsRefreshWait time.Duration `yaml:"resultsRefreshWait"`

	StreamMaxRetries int           `yaml:"streamMaxRetries"`
	StreamMinBackoff time.Duration `yaml:"streamMinBackoff"`
	StreamMaxBackoff time.Duration `yaml:"streamMaxBackoff"`

	// FullReplaceOnPush switches push handling from state-only updates to whole-record replacement.
	FullReplaceOnPush bool `yaml:"fullReplaceOnPush"`

	ListenAddr        string `yaml:"listenAddr"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`

	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
}

// Default returns the settings the console ships with
func Default() Config {
	return Config{
		BaseURL:              "http://localhost:4444/browserkube",
		RequestTimeout:       10 * time.Second,
		CreateSessionTimeout: 120 * time.Second,
		DeleteSessionTimeout: 30 * time.Second,
		ToastAutoClose:       5 * time.Second,
		CommandsPageSize:     15,
		CommandsThrottle:     time.Second,
		ScrollDebounce:       200 * time.Millisecond,
		SessionDuration:      10 * time.Minute,
		ResultsRefreshWait:   2 * time.Second,
		StreamMaxRetries:     5,
		StreamMinBackoff:     500 * time.Millisecond,
		StreamMaxBackoff:     15 * time.Second,
		ListenAddr:           "127.0.0.1:8090",
		RequestsPerMinute:    120,
		LogLevel:             "info",
	}
}

// Load reads .env, then the optional YAML profile, then environment overrides
func Load(profile string) (Config, error) {
	log := logging.For("config")
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	}

	cfg := Default()
	if profile != "" {
		raw, err := os.ReadFile(profile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config profile: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config profile %s: %w", profile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the console cannot run with
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return errors.New("base url has no host")
	}
	if c.CommandsPageSize <= 0 {
		return errors.New("commands page size must be positive")
	}
	if c.RequestTimeout <= 0 || c.CreateSessionTimeout <= 0 || c.DeleteSessionTimeout <= 0 {
		return errors.New("request timeouts must be positive")
	}
	if c.StreamMaxRetries < 0 {
		return errors.New("stream max retries must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BROWSERKUBE_URL", &cfg.BaseURL)
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":        &cfg.RequestTimeout,
		"CREATE_SESSION_TIMEOUT": &cfg.CreateSessionTimeout,
		"DELETE_SESSION_TIMEOUT": &cfg.DeleteSessionTimeout,
		"TOAST_AUTOCLOSE":        &cfg.ToastAutoClose,
		"SESSION_DURATION":       &cfg.SessionDuration,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"COMMANDS_PAGE_SIZE":  &cfg.CommandsPageSize,
		"STREAM_MAX_RETRIES":  &cfg.StreamMaxRetries,
		"REQUESTS_PER_MINUTE": &cfg.RequestsPerMinute,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("FULL_REPLACE_ON_PUSH"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("FULL_REPLACE_ON_PUSH: %w", err)
		}
		cfg.FullReplaceOnPush = b
	}
	return nil
}

// ParseDuration accepts Go duration strings ("30s") and bare integers, read as milliseconds
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}
