// File: internal/config/config.go
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Analysis() AnalysisConfig
	Engine() EngineConfig
	Server() ServerConfig
	Email() EmailConfig
	Export() ExportConfig

	SetBrowserHeadless(bool)
	SetBrowserStealth(bool)
	SetAnalysisHumanize(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
	EmailCfg    EmailConfig    `mapstructure:"email" yaml:"email"`
	ExportCfg   ExportConfig   `mapstructure:"export" yaml:"export"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Analysis() AnalysisConfig { return c.AnalysisCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }
func (c *Config) Email() EmailConfig       { return c.EmailCfg }
func (c *Config) Export() ExportConfig     { return c.ExportCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserStealth(b bool)  { c.BrowserCfg.Stealth = b }
func (c *Config) SetAnalysisHumanize(b bool) {
	c.AnalysisCfg.Humanize = b
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL runs
// the service without report persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the per-request Chrome processes.
type BrowserConfig struct {
	Headless        bool `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// Stealth injects the persona evasion script into every new document.
	Stealth       bool          `mapstructure:"stealth" yaml:"stealth"`
	ExecPath      string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	CloseTimeout  time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
}

// EngineConfig locates the accessibility engine payload. Path wins over URL.
type EngineConfig struct {
	Path         string        `mapstructure:"path" yaml:"path"`
	URL          string        `mapstructure:"url" yaml:"url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// AnalysisRate is the sustained number of analyses per second the API accepts.
	AnalysisRate  float64 `mapstructure:"analysis_rate" yaml:"analysis_rate"`
	AnalysisBurst int     `mapstructure:"analysis_burst" yaml:"analysis_burst"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EmailConfig holds the SMTP relay used for report delivery.
type EmailConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"-"`
	FromName    string `mapstructure:"from_name" yaml:"from_name"`
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`
}

// defaultSMTPHost is used when only account credentials are configured.
const defaultSMTPHost = "smtp.gmail.com"

// applyAccountDefaults fills the relay from the account when only
// credentials are set: mail is sent from the account itself over Gmail.
func (e *EmailConfig) applyAccountDefaults() {
	if e.Username == "" {
		return
	}
	if e.Host == "" {
		e.Host = defaultSMTPHost
	}
	if e.FromAddress == "" {
		e.FromAddress = e.Username
	}
}

// Enabled reports whether enough of the relay is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.FromAddress != ""
}

// ExportConfig tunes report export.
type ExportConfig struct {
	PDFTimeout time.Duration `mapstructure:"pdf_timeout" yaml:"pdf_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "a11yscan")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.close_timeout", "5s")

	// -- Analysis --
	setAnalysisDefaults(v)

	// -- Engine --
	v.SetDefault("engine.url", "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js")
	v.SetDefault("engine.fetch_timeout", "30s")

	// -- Server --
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.allowed_origins", []string{
		"https://accessibility-analyzer-v3.vercel.app",
		"http://localhost:4000",
	})
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.analysis_rate", 1.0)
	v.SetDefault("server.analysis_burst", 4)

	// -- Email --
	v.SetDefault("email.port", 587)
	v.SetDefault("email.from_name", "Accessibility Analyzer")

	// -- Export --
	v.SetDefault("export.pdf_timeout", "60s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Short names kept for container platforms that only inject these.
	_ = v.BindEnv("server.port", "A11YSCAN_SERVER_PORT", "PORT")
	_ = v.BindEnv("browser.stealth", "A11YSCAN_BROWSER_STEALTH", "USE_STEALTH")
	_ = v.BindEnv("database.url", "A11YSCAN_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("email.username", "A11YSCAN_EMAIL_USERNAME", "EMAIL_USER")
	_ = v.BindEnv("email.password", "A11YSCAN_EMAIL_PASSWORD", "EMAIL_PASSWORD", "EMAIL_PASS")
	_ = v.BindEnv("email.host", "A11YSCAN_EMAIL_HOST", "EMAIL_HOST")
	_ = v.BindEnv("email.from_address", "A11YSCAN_EMAIL_FROM_ADDRESS", "EMAIL_FROM")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.EmailCfg.applyAccountDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AnalysisCfg.Validate(); err != nil {
		return fmt.Errorf("analysis configuration invalid: %w", err)
	}
	if c.ServerCfg.Port <= 0 || c.ServerCfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.ServerCfg.AnalysisRate < 0 {
		return fmt.Errorf("server.analysis_rate must not be negative")
	}
	if c.EngineCfg.Path == "" && c.EngineCfg.URL == "" {
		return fmt.Errorf("one of engine.path or engine.url is required")
	}
	if c.BrowserCfg.CloseTimeout <= 0 {
		return fmt.Errorf("browser.close_timeout must be a positive duration")
	}
	return nil
}
