package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	// Validate upstream configuration
	u, err := url.Parse(c.Upstream.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid upstream endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("upstream endpoint must use ws or wss scheme, got %q", u.Scheme)
	}
	if c.Upstream.DefaultModel == "" {
		return errors.New("upstream default model must not be empty")
	}
	if c.Upstream.HandshakeTimeout < 1 {
		return errors.New("upstream handshake timeout must be at least 1 second")
	}
	// A missing credential must not abort startup: every upstream connect
	// will fail authentication, which is surfaced per session instead.
	if c.Upstream.APIKey == "" {
		log.Println("WARNING: no DashScope API key configured; upstream connections will be rejected")
	}

	// Validate relay configuration
	if c.Relay.LivenessInterval < 1 {
		return errors.New("relay liveness interval must be at least 1 second")
	}
	if c.Relay.InactivityTimeout <= c.Relay.LivenessInterval {
		return errors.New("relay inactivity timeout must exceed the liveness interval")
	}
	if c.Relay.ConfigureGrace < 1 {
		return errors.New("relay configure grace must be at least 1 millisecond")
	}
	if c.Relay.ReaperInterval < 1 {
		return errors.New("relay reaper interval must be at least 1 second")
	}
	if c.Relay.EventQueueSize < 1 {
		return errors.New("relay event queue size must be positive")
	}

	// Validate session store configuration
	switch strings.ToLower(c.SessionStore.Type) {
	case "memory":
	case "redis":
		if c.SessionStore.Redis.Address == "" {
			return errors.New("redis address must be specified for redis session store")
		}
	default:
		return fmt.Errorf("invalid session store type: %s. Must be 'memory' or 'redis'", c.SessionStore.Type)
	}
	if c.SessionStore.TTL <= c.Relay.InactivityTimeout {
		return errors.New("session store TTL should be greater than the inactivity timeout")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "QWENPROXY_PORT", "PORT")

	// Upstream
	viper.BindEnv("upstream.endpoint", "QWENPROXY_UPSTREAM_ENDPOINT")
	viper.BindEnv("upstream.apiKey", "QWENPROXY_DASHSCOPE_API_KEY", "DASHSCOPE_API_KEY")
	viper.BindEnv("upstream.defaultModel", "QWENPROXY_DEFAULT_MODEL")
	viper.BindEnv("upstream.handshakeTimeout", "QWENPROXY_HANDSHAKE_TIMEOUT")

	// Relay
	viper.BindEnv("relay.livenessInterval", "QWENPROXY_LIVENESS_INTERVAL")
	viper.BindEnv("relay.inactivityTimeout", "QWENPROXY_INACTIVITY_TIMEOUT")
	viper.BindEnv("relay.configureGrace", "QWENPROXY_CONFIGURE_GRACE")
	viper.BindEnv("relay.reaperInterval", "QWENPROXY_REAPER_INTERVAL")

	// Session store
	viper.BindEnv("sessionstore.type", "QWENPROXY_SESSION_STORE")
	viper.BindEnv("sessionstore.ttl", "QWENPROXY_SESSION_TTL")
	viper.BindEnv("sessionstore.redis.address", "QWENPROXY_REDIS_ADDRESS")
	viper.BindEnv("sessionstore.redis.password", "QWENPROXY_REDIS_PASSWORD")

	// Metrics
	viper.BindEnv("metrics.enabled", "QWENPROXY_METRICS_ENABLED")
	viper.BindEnv("metrics.port", "QWENPROXY_METRICS_PORT")
}
