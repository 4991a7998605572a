package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/draftsync/internal/db"
)

// Config aggregates every runtime setting of the server.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Cache    CacheConfig
	Log      LogConfig
	// Storage selects the version/conflict backend: "postgres" or
	// "memory" (the latter for local development and tests).
	Storage string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// CacheConfig holds the read-through version cache settings.
type CacheConfig struct {
	Size int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Cache:   CacheConfig{Size: 1024},
		Log:     LogConfig{Level: "info", Pretty: false},
		Storage: "postgres",
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()            // allow environment overrides
	v.SetEnvPrefix("DRAFTSYNC") // map env vars like DRAFTSYNC_DATABASE_HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("storage")
	v.BindEnv("log.level")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("cache.size") {
		cfg.Cache.Size = v.GetInt("cache.size")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.pretty") {
		cfg.Log.Pretty = v.GetBool("log.pretty")
	}
	if v.IsSet("storage") {
		cfg.Storage = v.GetString("storage")
	}

	return cfg, nil
}
