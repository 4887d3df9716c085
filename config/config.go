package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wfunc/serra/game"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress       string        `mapstructure:"http_address"`
	RPCAddress        string        `mapstructure:"rpc_address"`
	GRPCAddress       string        `mapstructure:"grpc_address"`
	MetricsAddress    string        `mapstructure:"metrics_address"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"` // "*" accepts any
}

type GameConfig struct {
	TargetScore    int           `mapstructure:"target_score"`
	HandSize       int           `mapstructure:"hand_size"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
	LastTrickBonus int           `mapstructure:"last_trick_bonus"`
	ResetOnVacate  bool          `mapstructure:"reset_on_vacate"`
	AllowTrumpSwap bool          `mapstructure:"allow_trump_swap"`
	ChatMaxLength  int           `mapstructure:"chat_max_length"`
	ChatHistory    int           `mapstructure:"chat_history"`
}

// Rules maps the game section onto table rules.
func (g GameConfig) Rules() game.Rules {
	return game.Rules{
		TargetScore:    g.TargetScore,
		HandSize:       g.HandSize,
		TurnTimeout:    g.TurnTimeout,
		LastTrickBonus: g.LastTrickBonus,
		ResetOnVacate:  g.ResetOnVacate,
		AllowTrumpSwap: g.AllowTrumpSwap,
	}
}

// DatabaseConfig selects the match archive. Driver is "gorm", "postgres"
// or "none".
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
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the libpq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// RedisConfig enables the finished-match stream when Address is set.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	rules := game.DefaultRules()

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("server.heartbeat_interval", 30*time.Second)
	v.SetDefault("server.tick_interval", 250*time.Millisecond)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("game.target_score", rules.TargetScore)
	v.SetDefault("game.hand_size", rules.HandSize)
	v.SetDefault("game.turn_timeout", rules.TurnTimeout)
	v.SetDefault("game.last_trick_bonus", rules.LastTrickBonus)
	v.SetDefault("game.reset_on_vacate", rules.ResetOnVacate)
	v.SetDefault("game.allow_trump_swap", rules.AllowTrumpSwap)
	v.SetDefault("game.chat_max_length", 80)
	v.SetDefault("game.chat_history", 25)

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "serra")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "serra")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "serra:matches")
	v.SetDefault("redis.max_len", 10000)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path, then SERRA_* environment
// variables (SERRA_GAME_TARGET_SCORE for game.target_score). A missing
// file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SERRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &config, nil
}
