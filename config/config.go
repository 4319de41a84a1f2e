package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	WSAddress      string `mapstructure:"ws_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	HealthAddress  string `mapstructure:"health_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// DatabaseConfig selects the store: "memory", "gorm" or "sql".
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SingleOpenMatch   bool          `mapstructure:"single_open_match"`
}

const (
	DriverMemory = "memory"
	DriverGorm   = "gorm"
	DriverSQL    = "sql"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.ws_address", ":8081")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.health_address", ":9091")
	v.SetDefault("server.metrics_address", ":2112")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "gomoku")

	v.SetDefault("game.inactivity_timeout", 1800*time.Second)
	v.SetDefault("game.sweep_interval", time.Minute)
	v.SetDefault("game.single_open_match", true)
}

// LoadConfig reads config.yaml from path. A missing file is not an error: defaults,
// a local .env and environment variables (GOMOKU_SERVER_HTTP_ADDRESS, ...) still apply.
func LoadConfig(path string) (config *Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("gomoku")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return config, config.Validate()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverGorm, DriverSQL:
	default:
		return errors.New("unknown database driver: " + c.Database.Driver)
	}
	if c.Game.InactivityTimeout <= 0 {
		return errors.New("game.inactivity_timeout must be positive")
	}
	if c.Game.SweepInterval < 0 {
		return errors.New("game.sweep_interval must not be negative")
	}
	return nil
}
