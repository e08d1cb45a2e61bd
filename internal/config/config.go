package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds everything a conformance run needs. Credentials are read
// once at startup and stay fixed for the process lifetime.
type Config struct {
	API APIConfig `mapstructure:"api"`
	Run RunConfig `mapstructure:"run"`
}

// APIConfig carries exchange credentials and endpoint paths. All of it
// comes from the environment; the YAML file never holds secrets.
type APIConfig struct {
	Key       string `mapstructure:"key"`        // API public key
	Secret    string `mapstructure:"secret"`     // API private key, base64
	OTPSecret string `mapstructure:"otp_secret"` // TOTP seed, base32

	Link               string `mapstructure:"link"`                 // base link, no endpoint
	ServerTimeEndpoint string `mapstructure:"server_time_endpoint"` // public
	AssetPairEndpoint  string `mapstructure:"asset_pair_endpoint"`  // public
	OpenOrdersEndpoint string `mapstructure:"open_orders_endpoint"` // private
}

// RunConfig carries non-secret runtime settings, all with defaults.
type RunConfig struct {
	FeaturesDir string        `mapstructure:"features_dir"`
	SchemasDir  string        `mapstructure:"schemas_dir"`
	ResultsDir  string        `mapstructure:"results_dir"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	RateLimit   float64       `mapstructure:"rate_limit"`   // requests per second
	RateBurst   int           `mapstructure:"rate_burst"`   // bucket size
	MetricsPort int           `mapstructure:"metrics_port"` // 0 disables the /metrics server
	LogLevel    string        `mapstructure:"log_level"`
}

// LoadConfig reads an optional YAML file for run settings and binds the
// credential/endpoint keys to their environment variables. A .env file in
// the working directory is honored when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env file loaded")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.BindEnv("api.key", "API_KEY")
	v.BindEnv("api.secret", "API_SECRET")
	v.BindEnv("api.otp_secret", "OTP_SECRET")
	v.BindEnv("api.link", "API_LINK")
	v.BindEnv("api.server_time_endpoint", "SERVER_TIME_ENDPOINT")
	v.BindEnv("api.asset_pair_endpoint", "ASSET_PAIR_ENDPOINT")
	v.BindEnv("api.open_orders_endpoint", "OPEN_ORDERS_ENDPOINT")

	v.SetDefault("run.features_dir", "features")
	v.SetDefault("run.schemas_dir", "schemas")
	v.SetDefault("run.results_dir", "results")
	v.SetDefault("run.http_timeout", 10*time.Second)
	v.SetDefault("run.max_retries", 3)
	v.SetDefault("run.retry_delay", 200*time.Millisecond)
	v.SetDefault("run.rate_limit", 1.0)
	v.SetDefault("run.rate_burst", 3)
	v.SetDefault("run.metrics_port", 0)
	v.SetDefault("run.log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validateRun(&cfg.Run); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info().Str("file", path).Msg("config loaded")
	return &cfg, nil
}

// ValidatePublic checks the keys the public suite needs.
func (c *Config) ValidatePublic() error {
	if err := validateLink(c.API.Link); err != nil {
		return err
	}
	if err := validateEndpoint("SERVER_TIME_ENDPOINT", c.API.ServerTimeEndpoint); err != nil {
		return err
	}
	return validateEndpoint("ASSET_PAIR_ENDPOINT", c.API.AssetPairEndpoint)
}

// ValidatePrivate checks the keys the private suite needs, credentials
// included.
func (c *Config) ValidatePrivate() error {
	if err := validateLink(c.API.Link); err != nil {
		return err
	}
	if err := validateEndpoint("OPEN_ORDERS_ENDPOINT", c.API.OpenOrdersEndpoint); err != nil {
		return err
	}
	if c.API.Key == "" {
		return fmt.Errorf("missing environment variable: API_KEY")
	}
	if c.API.Secret == "" {
		return fmt.Errorf("missing environment variable: API_SECRET")
	}
	if c.API.OTPSecret == "" {
		return fmt.Errorf("missing environment variable: OTP_SECRET")
	}
	return nil
}

func validateLink(link string) error {
	if link == "" {
		return fmt.Errorf("missing environment variable: API_LINK")
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_LINK must be an absolute URL, got %q", link)
	}
	return nil
}

func validateEndpoint(name, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("missing environment variable: %s", name)
	}
	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("%s must start with '/', got %q", name, endpoint)
	}
	return nil
}

func validateRun(r *RunConfig) error {
	if r.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be > 0")
	}
	if r.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1")
	}
	if r.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be > 0")
	}
	if r.FeaturesDir == "" || r.SchemasDir == "" || r.ResultsDir == "" {
		return fmt.Errorf("features_dir, schemas_dir and results_dir must be set")
	}
	return nil
}
