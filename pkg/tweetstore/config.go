package tweetstore

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the database settings for the tweet sink.
type Config struct {
	Driver string `yaml:"driver"`
	// DSN overrides the MySQL parts below. Required for postgres and sqlite.
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	InsertAttempts  int           `yaml:"insert_attempts"`
	InsertBackoff   time.Duration `yaml:"insert_backoff"`
	InsertTimeout   time.Duration `yaml:"insert_timeout"`
	// BreakerFailures consecutive insert failures open the circuit for BreakerTimeout.
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// Env constants for database settings.
const (
	DBDriver      = "DB_DRIVER"
	DBDSN         = "DB_DSN"
	MySQLHost     = "MYSQL_HOST"
	MySQLPort     = "MYSQL_PORT"
	MySQLDatabase = "MYSQL_DATABASE"
	MySQLUser     = "MYSQL_USER"
	MySQLPassword = "MYSQL_PASSWORD"
)

// DefaultConfig returns the built-in defaults without reading the environment.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverMySQL,
		Host:            "localhost",
		Port:            3306,
		Database:        "twitter_analytics",
		User:            "twitter_user",
		Password:        "twitter_password",
		ConnectAttempts: 10,
		ConnectDelay:    5 * time.Second,
		InsertAttempts:  3,
		InsertBackoff:   200 * time.Millisecond,
		InsertTimeout:   5 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// LoadConfigFromEnv returns the defaults overridden by the environment.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields whose environment variables are set.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(DBDriver); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv(DBDSN); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv(MySQLHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(MySQLPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv(MySQLDatabase); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv(MySQLUser); v != "" {
		cfg.User = v
	}
	if v := os.Getenv(MySQLPassword); v != "" {
		cfg.Password = v
	}
}

// Validate checks that the driver is known and has a data source.
func (cfg *Config) Validate() error {
	switch cfg.Driver {
	case DriverMySQL:
		if cfg.DSN == "" && cfg.Host == "" {
			return fmt.Errorf("mysql needs %s or %s", DBDSN, MySQLHost)
		}
	case DriverPostgres, DriverSQLite:
		if cfg.DSN == "" {
			return fmt.Errorf("%s needs %s", cfg.Driver, DBDSN)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return nil
}

// DataSourceName returns the DSN for the configured driver. MySQL DSNs built
// from parts parse DATETIME columns as UTC time.Time values.
func (cfg *Config) DataSourceName() string {
	if cfg.DSN != "" || cfg.Driver != DriverMySQL {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}
