package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // audit locations must resolve on hosts without zoneinfo

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. BALLOT_SERVER_PORT.
const EnvPrefix = "BALLOT"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Audit     AuditSettings   `yaml:"audit" envconfig:"AUDIT"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"10"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"20"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/ballotaudit.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"out"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// AuditSettings configures how audits run, not what they detect. Detection
// thresholds live in the policy file.
type AuditSettings struct {
	PolicyFile string `yaml:"policy_file" envconfig:"POLICY_FILE"`
	// PseudonymSalt keys the email hash used in exports.
	PseudonymSalt string `yaml:"pseudonym_salt" envconfig:"PSEUDONYM_SALT"`
	// Location is the IANA zone naive timestamps are read in.
	Location    string `yaml:"location" envconfig:"LOCATION" default:"UTC"`
	TopN        int    `yaml:"top_n" envconfig:"TOP_N" default:"10"`
	FocusChoice string `yaml:"focus_choice" envconfig:"FOCUS_CHOICE"`
}

// SheetsConfig points at a Google Sheet holding form responses.
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"credentials.json"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	Range           string `yaml:"range" envconfig:"RANGE" default:"A:Z"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path means
// environment variables only.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg, envSet)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envSet reports whether an environment variable was explicitly set.
func envSet(name string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + name)
	return ok
}

// mergeConfigs overlays file values onto env config. A field set in the
// environment wins; otherwise a non-zero file value replaces the default.
func mergeConfigs(file, env Config, isSet func(string) bool) Config {
	str := func(dst *string, src, name string) {
		if !isSet(name) && src != "" {
			*dst = src
		}
	}
	dur := func(dst *time.Duration, src time.Duration, name string) {
		if !isSet(name) && src != 0 {
			*dst = src
		}
	}

	if !isSet("SERVER_PORT") && file.Server.Port != 0 {
		env.Server.Port = file.Server.Port
	}
	dur(&env.Server.ReadTimeout, file.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	dur(&env.Server.WriteTimeout, file.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	dur(&env.Server.IdleTimeout, file.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	dur(&env.Server.ShutdownTimeout, file.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	dur(&env.Server.RequestTimeout, file.Server.RequestTimeout, "SERVER_REQUEST_TIMEOUT")
	if !isSet("SERVER_MAX_UPLOAD_BYTES") && file.Server.MaxUploadBytes != 0 {
		env.Server.MaxUploadBytes = file.Server.MaxUploadBytes
	}

	if !isSet("SECURITY_ALLOWED_ORIGINS") && len(file.Security.AllowedOrigins) > 0 {
		env.Security.AllowedOrigins = file.Security.AllowedOrigins
	}
	if !isSet("SECURITY_RATE_LIMIT_RPS") && file.Security.RateLimit.RPS != 0 {
		env.Security.RateLimit.RPS = file.Security.RateLimit.RPS
	}
	if !isSet("SECURITY_RATE_LIMIT_BURST") && file.Security.RateLimit.Burst != 0 {
		env.Security.RateLimit.Burst = file.Security.RateLimit.Burst
	}

	str(&env.Logging.Level, file.Logging.Level, "LOGGING_LEVEL")
	str(&env.Logging.Format, file.Logging.Format, "LOGGING_FORMAT")
	str(&env.Logging.Output, file.Logging.Output, "LOGGING_OUTPUT")
	str(&env.Logging.FilePath, file.Logging.FilePath, "LOGGING_FILE_PATH")

	str(&env.Paths.DataDir, file.Paths.DataDir, "PATHS_DATA_DIR")
	str(&env.Paths.OutputDir, file.Paths.OutputDir, "PATHS_OUTPUT_DIR")
	str(&env.Paths.LogsDir, file.Paths.LogsDir, "PATHS_LOGS_DIR")

	str(&env.Audit.PolicyFile, file.Audit.PolicyFile, "AUDIT_POLICY_FILE")
	str(&env.Audit.PseudonymSalt, file.Audit.PseudonymSalt, "AUDIT_PSEUDONYM_SALT")
	str(&env.Audit.Location, file.Audit.Location, "AUDIT_LOCATION")
	str(&env.Audit.FocusChoice, file.Audit.FocusChoice, "AUDIT_FOCUS_CHOICE")
	if !isSet("AUDIT_TOP_N") && file.Audit.TopN != 0 {
		env.Audit.TopN = file.Audit.TopN
	}

	str(&env.Sheets.CredentialsFile, file.Sheets.CredentialsFile, "SHEETS_CREDENTIALS_FILE")
	str(&env.Sheets.SpreadsheetID, file.Sheets.SpreadsheetID, "SHEETS_SPREADSHEET_ID")
	str(&env.Sheets.Range, file.Sheets.Range, "SHEETS_RANGE")

	str(&env.Telemetry.Environment, file.Telemetry.Environment, "TELEMETRY_ENVIRONMENT")
	str(&env.Telemetry.TraceExporter, file.Telemetry.TraceExporter, "TELEMETRY_TRACE_EXPORTER")
	str(&env.Telemetry.MetricExporter, file.Telemetry.MetricExporter, "TELEMETRY_METRIC_EXPORTER")
	if !isSet("TELEMETRY_SAMPLE_RATIO") && file.Telemetry.SampleRatio != 0 {
		env.Telemetry.SampleRatio = file.Telemetry.SampleRatio
	}

	return env
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}

	if c.Audit.TopN <= 0 {
		return fmt.Errorf("audit top_n must be positive, got %d", c.Audit.TopN)
	}

	if _, err := time.LoadLocation(c.Audit.Location); err != nil {
		return fmt.Errorf("invalid audit location %q: %w", c.Audit.Location, err)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0, 1], got %g", c.Telemetry.SampleRatio)
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "ballotaudit.log")
	}

	return nil
}

// AuditLocation returns the zone for naive timestamps, UTC when unset.
func (c *Config) AuditLocation() *time.Location {
	loc, err := time.LoadLocation(c.Audit.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AuditPolicy returns the default policy with the configured policy file
// applied, if any.
func (c *Config) AuditPolicy() (AuditConfig, error) {
	base := DefaultAudit()
	if c.Audit.PolicyFile == "" {
		return base, nil
	}
	pf, err := LoadPolicyFile(c.Audit.PolicyFile)
	if err != nil {
		return base, err
	}
	return pf.Apply(base)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
			MaxUploadBytes:  32 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/ballotaudit.log",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "out",
			LogsDir:   "logs",
		},
		Audit: AuditSettings{
			Location: "UTC",
			TopN:     10,
		},
		Sheets: SheetsConfig{
			CredentialsFile: "credentials.json",
			Range:           "A:Z",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
	}
}
