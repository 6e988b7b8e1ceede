package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server       ServerConfig
	Upstream     UpstreamConfig
	Relay        RelayConfig
	SessionStore SessionStoreConfig
	Metrics      MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds, health endpoint only
	WriteTimeout int // Seconds, health endpoint only
}

type UpstreamConfig struct {
	Endpoint         string // Realtime API base URL, ws(s) scheme
	APIKey           string
	DefaultModel     string
	HandshakeTimeout int // Seconds
}

type RelayConfig struct {
	LivenessInterval  int // Seconds
	InactivityTimeout int // Seconds
	ConfigureGrace    int // Milliseconds, deferred retry delay after upstream open
	WriteTimeout      int // Seconds
	ReaperInterval    int // Seconds
	EventQueueSize    int
}

type SessionStoreConfig struct {
	Type  string // "memory" or "redis"
	TTL   int    // Seconds
	Redis RedisConfig
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("QWENPROXY")

		setDefaults()
		bindEnvVars()

		// The config file is optional; environment variables plus defaults
		// are a complete configuration.
		if err := viper.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
