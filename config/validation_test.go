package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Port: 8080, ReadTimeout: 15, WriteTimeout: 15},
		Upstream: UpstreamConfig{
			Endpoint:         "wss://dashscope.aliyuncs.com/api-ws/v1/realtime",
			APIKey:           "sk-test",
			DefaultModel:     "qwen-omni-turbo-realtime",
			HandshakeTimeout: 10,
		},
		Relay: RelayConfig{
			LivenessInterval:  30,
			InactivityTimeout: 300,
			ConfigureGrace:    750,
			WriteTimeout:      10,
			ReaperInterval:    60,
			EventQueueSize:    256,
		},
		SessionStore: SessionStoreConfig{Type: "memory", TTL: 600},
		Metrics:      MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingCredentialIsNotFatal(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.APIKey = ""
	// Startup must not crash on a missing credential; connects simply fail.
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"port out of range", func(c *AppConfig) { c.Server.Port = 0 }},
		{"non-websocket upstream scheme", func(c *AppConfig) { c.Upstream.Endpoint = "https://example.com/realtime" }},
		{"empty default model", func(c *AppConfig) { c.Upstream.DefaultModel = "" }},
		{"zero handshake timeout", func(c *AppConfig) { c.Upstream.HandshakeTimeout = 0 }},
		{"liveness interval above inactivity timeout", func(c *AppConfig) { c.Relay.LivenessInterval = 400 }},
		{"unknown session store type", func(c *AppConfig) { c.SessionStore.Type = "dynamo" }},
		{"redis store without address", func(c *AppConfig) {
			c.SessionStore.Type = "redis"
			c.SessionStore.Redis.Address = ""
		}},
		{"store TTL below inactivity timeout", func(c *AppConfig) { c.SessionStore.TTL = 100 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
