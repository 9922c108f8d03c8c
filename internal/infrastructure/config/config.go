package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Billing   BillingConfig
	FollowUp  FollowUpConfig
	Scheduler SchedulerConfig
	Mail      MailConfig
	Document  DocumentConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// BillingConfig holds document issuance settings
type BillingConfig struct {
	PaymentTermDays   int    // due date offset applied when issuing invoices
	QuoteNumberPrefix string // e.g. "QUO"
	InvoiceNumPrefix  string // e.g. "INV"
	CreditNotePrefix  string // e.g. "CN"
}

// StageThreshold maps a minimum number of days overdue onto an
// escalation stage.
type StageThreshold struct {
	Stage          int `mapstructure:"stage"`
	MinDaysOverdue int `mapstructure:"min_days_overdue"`
}

// FollowUpConfig holds reminder scheduling settings
type FollowUpConfig struct {
	LookAheadDays int              // pre-due courtesy window
	Thresholds    []StageThreshold // overdue escalation ladder
}

// SchedulerConfig holds the cadence of the background passes
type SchedulerConfig struct {
	Enabled           bool
	StatusRefreshTick time.Duration // overdue status sweep
	EnsureInterval    time.Duration // follow-up scheduling sweep
	DispatchInterval  time.Duration // reminder dispatch pass
	ReconcileInterval time.Duration // stale follow-up recovery pass
	JobTimeout        time.Duration
}

// MailConfig holds outbound email settings
type MailConfig struct {
	Provider string // smtp, postmark, noop
	From     string
	FromName string
	Locale   string // BCP 47 tag for amount and date formatting
	SMTP     SMTPConfig
	Postmark PostmarkConfig
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// PostmarkConfig holds Postmark API settings
type PostmarkConfig struct {
	ServerToken string
}

// DocumentConfig holds PDF rendering and storage settings
type DocumentConfig struct {
	RendererEnabled bool          // false falls back to the stub renderer
	RemoteChromeURL string        // ws:// endpoint, empty launches a local browser
	RenderTimeout   time.Duration
	NoSandbox       bool
	Storage         StorageConfig
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FACTURIO_ prefix (e.g., FACTURIO_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("FACTURIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Billing: BillingConfig{
			PaymentTermDays:   v.GetInt("billing.payment_term_days"),
			QuoteNumberPrefix: v.GetString("billing.quote_number_prefix"),
			InvoiceNumPrefix:  v.GetString("billing.invoice_number_prefix"),
			CreditNotePrefix:  v.GetString("billing.credit_note_prefix"),
		},
		FollowUp: FollowUpConfig{
			LookAheadDays: v.GetInt("follow_up.look_ahead_days"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			StatusRefreshTick: v.GetDuration("scheduler.status_refresh_interval"),
			EnsureInterval:    v.GetDuration("scheduler.ensure_interval"),
			DispatchInterval:  v.GetDuration("scheduler.dispatch_interval"),
			ReconcileInterval: v.GetDuration("scheduler.reconcile_interval"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
		},
		Mail: MailConfig{
			Provider: v.GetString("mail.provider"),
			From:     v.GetString("mail.from"),
			FromName: v.GetString("mail.from_name"),
			Locale:   v.GetString("mail.locale"),
			SMTP: SMTPConfig{
				Host:     v.GetString("mail.smtp.host"),
				Port:     v.GetInt("mail.smtp.port"),
				Username: v.GetString("mail.smtp.username"),
				Password: v.GetString("mail.smtp.password"),
			},
			Postmark: PostmarkConfig{
				ServerToken: v.GetString("mail.postmark.server_token"),
			},
		},
		Document: DocumentConfig{
			RendererEnabled: v.GetBool("document.renderer_enabled"),
			RemoteChromeURL: v.GetString("document.remote_chrome_url"),
			RenderTimeout:   v.GetDuration("document.render_timeout"),
			NoSandbox:       v.GetBool("document.no_sandbox"),
			Storage: StorageConfig{
				Enabled:      v.GetBool("document.storage.enabled"),
				Endpoint:     v.GetString("document.storage.endpoint"),
				Region:       v.GetString("document.storage.region"),
				Bucket:       v.GetString("document.storage.bucket"),
				AccessKey:    v.GetString("document.storage.access_key"),
				SecretKey:    v.GetString("document.storage.secret_key"),
				UseSSL:       v.GetBool("document.storage.use_ssl"),
				UsePathStyle: v.GetBool("document.storage.use_path_style"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	// The escalation ladder is a table of tables and needs a real
	// unmarshal rather than key-by-key reads.
	if err := v.UnmarshalKey("follow_up.thresholds", &cfg.FollowUp.Thresholds); err != nil {
		return nil, fmt.Errorf("error parsing follow_up.thresholds: %w", err)
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "facturio-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "facturio"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Billing.PaymentTermDays == 0 {
		cfg.Billing.PaymentTermDays = 30
	}
	if cfg.Billing.QuoteNumberPrefix == "" {
		cfg.Billing.QuoteNumberPrefix = "QUO"
	}
	if cfg.Billing.InvoiceNumPrefix == "" {
		cfg.Billing.InvoiceNumPrefix = "INV"
	}
	if cfg.Billing.CreditNotePrefix == "" {
		cfg.Billing.CreditNotePrefix = "CN"
	}
	if cfg.FollowUp.LookAheadDays == 0 {
		cfg.FollowUp.LookAheadDays = 3
	}
	if len(cfg.FollowUp.Thresholds) == 0 {
		cfg.FollowUp.Thresholds = []StageThreshold{
			{Stage: 1, MinDaysOverdue: 0},
			{Stage: 2, MinDaysOverdue: 14},
			{Stage: 3, MinDaysOverdue: 30},
		}
	}
	if cfg.Scheduler.StatusRefreshTick == 0 {
		cfg.Scheduler.StatusRefreshTick = time.Hour
	}
	if cfg.Scheduler.EnsureInterval == 0 {
		cfg.Scheduler.EnsureInterval = time.Hour
	}
	if cfg.Scheduler.DispatchInterval == 0 {
		cfg.Scheduler.DispatchInterval = 15 * time.Minute
	}
	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = 6 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "smtp"
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = "billing@localhost"
	}
	if cfg.Mail.Locale == "" {
		cfg.Mail.Locale = "nl"
	}
	if cfg.Mail.SMTP.Host == "" {
		cfg.Mail.SMTP.Host = "localhost"
	}
	if cfg.Mail.SMTP.Port == 0 {
		cfg.Mail.SMTP.Port = 587
	}
	if cfg.Document.RenderTimeout == 0 {
		cfg.Document.RenderTimeout = 30 * time.Second
	}
	if cfg.Document.Storage.Region == "" {
		cfg.Document.Storage.Region = "eu-west-1"
	}
	if cfg.Document.Storage.Bucket == "" {
		cfg.Document.Storage.Bucket = "facturio-documents"
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "facturio-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	// Note: DBLogFullSQL defaults to false for security (disable in production)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.FollowUp.LookAheadDays < 0 {
		return fmt.Errorf("follow_up.look_ahead_days cannot be negative")
	}
	seen := make(map[int]bool, len(c.FollowUp.Thresholds))
	for _, th := range c.FollowUp.Thresholds {
		if th.Stage < 1 {
			return fmt.Errorf("follow_up.thresholds stage must be at least 1, got %d", th.Stage)
		}
		if th.MinDaysOverdue < 0 {
			return fmt.Errorf("follow_up.thresholds min_days_overdue cannot be negative, got %d", th.MinDaysOverdue)
		}
		if seen[th.Stage] {
			return fmt.Errorf("follow_up.thresholds stage %d configured twice", th.Stage)
		}
		seen[th.Stage] = true
	}

	switch c.Mail.Provider {
	case "smtp", "postmark", "noop":
	default:
		return fmt.Errorf("mail.provider must be smtp, postmark or noop, got %q", c.Mail.Provider)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Mail.Provider == "postmark" && c.Mail.Postmark.ServerToken == "" {
			return fmt.Errorf("mail.postmark.server_token is required in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
