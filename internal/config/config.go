// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authkit configuration.
//
// Sources are layered, later ones winning: built-in defaults, the YAML file,
// a .env file, AUTHKIT_<SECTION>__<KEY> environment variables, and changed
// command-line flags.
package config

import (
	"net"
	"slices"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authkit/internal/logging"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// Hasher algorithms.
const (
	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

// Config is the full authkit configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Users    UsersConfig    `koanf:"users"`
	Redis    RedisConfig    `koanf:"redis"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Hasher   HasherConfig   `koanf:"hasher"`
	Mailer   MailerConfig   `koanf:"mailer"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	CORSOrigins    []string `koanf:"cors_origins"`
	RateLimit      int      `koanf:"rate_limit"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// MetricsConfig configures the metrics and health listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SessionConfig configures the session store and cookie.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	Cookie        string        `koanf:"cookie"`
	MaxAge        time.Duration `koanf:"max_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// UsersConfig configures the user directory.
type UsersConfig struct {
	Backend string `koanf:"backend"`
}

// RedisConfig configures the redis client shared by the session store and
// the mail queue.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MongoConfig configures the mongo user directory.
type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// HasherConfig selects the password hashing algorithm.
type HasherConfig struct {
	Algorithm  string `koanf:"algorithm"`
	BcryptCost int    `koanf:"bcrypt_cost"`
}

// MailerConfig configures the welcome mail.
type MailerConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Queue    bool   `koanf:"queue"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	Secure   bool   `koanf:"secure"`
}

// UsesPostgres reports whether either backend needs a database.
func (c *Config) UsesPostgres() bool {
	return c.Session.Backend == BackendPostgres || c.Users.Backend == BackendPostgres
}

// UsesRedis reports whether the session store or the mail queue needs redis.
func (c *Config) UsesRedis() bool {
	return c.Session.Backend == BackendRedis || (c.Mailer.Enabled && c.Mailer.Queue)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "http.addr is required")
	}
	if c.HTTP.RateLimit <= 0 {
		return invalid("http.rate_limit", c.HTTP.RateLimit, "http.rate_limit must be positive")
	}
	for _, cidr := range c.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return invalid("http.trusted_proxies", cidr, "http.trusted_proxies entries must be CIDR ranges")
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error")
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis, BackendPostgres}, c.Session.Backend) {
		return invalid("session.backend", c.Session.Backend, "session.backend must be memory, redis or postgres")
	}
	if !slices.Contains([]string{BackendPostgres, BackendMongo, BackendMemory}, c.Users.Backend) {
		return invalid("users.backend", c.Users.Backend, "users.backend must be postgres, mongo or memory")
	}
	if c.Session.Backend == BackendPostgres && c.Users.Backend != BackendPostgres {
		return invalid("session.backend", c.Session.Backend, "session.backend postgres requires users.backend postgres")
	}
	if c.Session.Cookie == "" {
		return invalid("session.cookie", c.Session.Cookie, "session.cookie is required")
	}
	if c.Session.MaxAge <= 0 {
		return invalid("session.max_age", c.Session.MaxAge, "session.max_age must be positive")
	}
	if c.Session.SweepInterval < 0 {
		return invalid("session.sweep_interval", c.Session.SweepInterval, "session.sweep_interval cannot be negative")
	}
	if c.UsesPostgres() && c.Database.URL == "" {
		return invalid("database.url", "", "database.url (or DATABASE_URL) is required for the postgres backend")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return invalid("redis.addr", "", "redis.addr is required")
	}
	if c.Users.Backend == BackendMongo && (c.Mongo.URI == "" || c.Mongo.Database == "") {
		return invalid("mongo.uri", c.Mongo.URI, "mongo.uri and mongo.database are required for the mongo backend")
	}
	if c.Hasher.Algorithm != HasherArgon2id && c.Hasher.Algorithm != HasherBcrypt {
		return invalid("hasher.algorithm", c.Hasher.Algorithm, "hasher.algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Hasher.BcryptCost < bcrypt.MinCost || c.Hasher.BcryptCost > bcrypt.MaxCost {
		return invalid("hasher.bcrypt_cost", c.Hasher.BcryptCost, "hasher.bcrypt_cost must be between 4 and 31")
	}
	if c.Mailer.Enabled && (c.Mailer.Host == "" || c.Mailer.From == "") {
		return invalid("mailer.host", c.Mailer.Host, "mailer.host and mailer.from are required when mail is enabled")
	}
	return nil
}

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s", msg)
}
