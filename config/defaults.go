package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 15)

	// Upstream
	viper.SetDefault("upstream.endpoint", "wss://dashscope.aliyuncs.com/api-ws/v1/realtime")
	viper.SetDefault("upstream.apiKey", "")
	viper.SetDefault("upstream.defaultModel", "qwen-omni-turbo-realtime")
	viper.SetDefault("upstream.handshakeTimeout", 10)

	// Relay
	viper.SetDefault("relay.livenessInterval", 30)
	viper.SetDefault("relay.inactivityTimeout", 300)
	viper.SetDefault("relay.configureGrace", 750)
	viper.SetDefault("relay.writeTimeout", 10)
	viper.SetDefault("relay.reaperInterval", 60)
	viper.SetDefault("relay.eventQueueSize", 256)

	// Session store
	viper.SetDefault("sessionstore.type", "memory")
	viper.SetDefault("sessionstore.ttl", 600)
	viper.SetDefault("sessionstore.redis.address", "localhost:6379")
	viper.SetDefault("sessionstore.redis.db", 0)
	viper.SetDefault("sessionstore.redis.poolSize", 100)
	viper.SetDefault("sessionstore.redis.poolTimeout", 5)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
