package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gts-portal/internal/kv"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Media  MediaConfig       `yaml:"media"`
	Push   PushConfig        `yaml:"push"`
	Events EventsConfig      `yaml:"events"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// SimulatedLatency delays every /api response, mimicking a remote backend.
	SimulatedLatency time.Duration `yaml:"simulated_latency"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.SimulatedLatency, validation.Min(time.Duration(0)), validation.Max(10*time.Second)),
	)
}

// StoreConfig selects the key-value backend the tables are mirrored to.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisURL  string `yaml:"redis_url"`
	Namespace string `yaml:"namespace"`
	// Watch reloads tables edited on disk by another process. File backend only.
	Watch bool `yaml:"watch"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	backends := make([]any, len(kv.Backends))
	for i, b := range kv.Backends {
		backends[i] = b
	}
	needsPath := c.Backend == kv.BackendFile || c.Backend == kv.BackendSQLite || c.Backend == kv.BackendBolt
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(backends...)),
		validation.Field(&c.Path, validation.When(needsPath, validation.Required)),
		validation.Field(&c.RedisURL, validation.When(c.Backend == kv.BackendRedis, validation.Required)),
	)
}

// KVOptions converts the configuration to kv.Open options.
func (c *StoreConfig) KVOptions() kv.Options {
	return kv.Options{
		Backend:   c.Backend,
		Path:      c.Path,
		RedisURL:  c.RedisURL,
		Namespace: c.Namespace,
	}
}

// MediaConfig holds the uploaded media directory.
type MediaConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PushConfig configures the push notification adapter.
type PushConfig struct {
	Enabled bool `yaml:"enabled"`
	// PreviewHosts are host patterns (path.Match syntax) of preview
	// deployments, where push is reported unsupported.
	PreviewHosts []string `yaml:"preview_hosts"`
}

// EventsConfig configures the SSE stream.
type EventsConfig struct {
	StatsThrottle time.Duration `yaml:"stats_throttle"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Portal logins (POST /api/auth/login) are independent of Mode.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend:   kv.BackendFile,
			Path:      "./data",
			Namespace: "gts",
			Watch:     true,
		},
		Media: MediaConfig{
			Path: "./media",
		},
		Push: PushConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			StatsThrottle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
