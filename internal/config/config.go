package config

import "time"

type Config struct {
	Service   *ServiceConfig
	Postgres  *PostgresConfig
	Redis     *RedisConfig
	Gateway   *GatewayConfig
	Tracer    *TracerConfig
	Logger    *LoggerConfig
	JWTSecret string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

// GatewayConfig tunes the realtime gateway. Every store-backed event handler
// runs under OpTimeout; each connection refreshes its presence key every
// HeartbeatInterval with a PresenceTTL expiry. An empty AllowedOrigins list
// admits every handshake origin.
type GatewayConfig struct {
	OpTimeout         time.Duration
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
	AllowedOrigins    []string
}

type TracerConfig struct {
	Address string
	Enabled bool
}

type LoggerConfig struct {
	Level  string
	Format string
}
