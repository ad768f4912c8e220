// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Admin         AdminConfig        `mapstructure:"admin"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Notification Outbox Config ---

// Channel provider modes. A real provider name selects the live sender for
// that channel; "mock" always succeeds without network I/O; "disabled" fails
// every send non-retryably.
const (
	ModeMock     = "mock"
	ModeDisabled = "disabled"
	ModeSES      = "ses"  // email via AWS SES
	ModeWABA     = "waba" // WhatsApp Cloud API
)

// NotificationConfig holds settings for the notification outbox.
type NotificationConfig struct {
	MaxAttempts                int  `mapstructure:"max_attempts"`           // 1..10
	DefaultDispatchLimit       int  `mapstructure:"default_dispatch_limit"` // <= 50
	AutoDispatchOnCreate       bool `mapstructure:"auto_dispatch_on_create"`
	AutoDispatchOnStatusChange bool `mapstructure:"auto_dispatch_on_status_change"`
	SendTimeout                int  `mapstructure:"send_timeout"` // milliseconds, per provider call

	Email struct {
		Mode      string `mapstructure:"mode"` // mock | ses | disabled
		FromEmail string `mapstructure:"from_email"`
		AWSRegion string `mapstructure:"aws_region"`
	} `mapstructure:"email"`

	WhatsApp struct {
		Mode          string `mapstructure:"mode"` // mock | waba | disabled
		APIVersion    string `mapstructure:"api_version"`
		PhoneNumberID string `mapstructure:"phone_number_id"`
		AccessToken   string `mapstructure:"access_token"`
	} `mapstructure:"whatsapp"`
}

// AdminConfig guards the internal API surface.
type AdminConfig struct {
	Token           string `mapstructure:"token"`
	MetricsCacheTTL int    `mapstructure:"metrics_cache_ttl"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
