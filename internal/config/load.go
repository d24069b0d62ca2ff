// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authkit/internal/xdg"
)

// EnvPrefix prefixes environment overrides. Sections and keys are separated
// by a double underscore: AUTHKIT_SESSION__MAX_AGE=1h.
const EnvPrefix = "AUTHKIT_"

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

const defaultHTTPAddr = ":3000"

// Options control where Load reads from.
type Options struct {
	// File is an explicit config file; it must exist. When empty the XDG
	// config file is used if present.
	File string
	// EnvFile is a dotenv file merged under the process environment.
	// Empty selects DefaultEnvFile; a missing file is ignored.
	EnvFile string
	// Flags are applied last; only changed flags override.
	Flags *pflag.FlagSet
	// Environ returns the process environment. Defaults to os.Environ.
	Environ func() []string
}

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"addr":            "http.addr",
	"metrics-addr":    "metrics.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"database-url":    "database.url",
	"session-backend": "session.backend",
	"users-backend":   "users.backend",
}

// RegisterFlags adds the overridable settings to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", defaultHTTPAddr, "HTTP listen address")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("session-backend", BackendMemory, "session store (memory, redis, postgres)")
	flags.String("users-backend", BackendPostgres, "user directory (postgres, mongo, memory)")
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":              defaultHTTPAddr,
		"http.cors_origins":      []string{"*"},
		"http.rate_limit":        5,
		"http.trusted_proxies":   []string{},
		"metrics.addr":           "127.0.0.1:9100",
		"log.format":             "json",
		"log.level":              "info",
		"database.url":           "",
		"session.backend":        BackendMemory,
		"session.cookie":         "auth_session",
		"session.max_age":        "168h",
		"session.sweep_interval": "10m",
		"users.backend":          BackendPostgres,
		"redis.addr":             "localhost:6379",
		"redis.password":         "",
		"redis.db":               0,
		"mongo.uri":              "mongodb://localhost:27017",
		"mongo.database":         "authkit",
		"hasher.algorithm":       HasherArgon2id,
		"hasher.bcrypt_cost":     12,
		"mailer.enabled":         false,
		"mailer.queue":           false,
		"mailer.host":            "",
		"mailer.port":            587,
		"mailer.username":        "",
		"mailer.password":        "",
		"mailer.from":            "",
		"mailer.secure":          false,
	}
}

// Load reads the configuration. The result is not validated.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	path := opts.File
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	environ, err := environment(opts)
	if err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   func() []string { return environ },
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	applyConventionalEnv(k, environ)

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// environment returns the process environment with the dotenv file merged
// underneath it. Variables already set are never replaced.
func environment(opts Options) ([]string, error) {
	environ := os.Environ
	if opts.Environ != nil {
		environ = opts.Environ
	}
	vars := environ()

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vars, nil
		}
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "dotenv").With("path", envFile).Wrap(err)
	}

	set := make(map[string]bool, len(vars))
	for _, kv := range vars {
		name, _, _ := strings.Cut(kv, "=")
		set[name] = true
	}
	for name, value := range dotenv {
		if !set[name] {
			vars = append(vars, name+"="+value)
		}
	}
	return vars, nil
}

// envKey turns AUTHKIT_SESSION__MAX_AGE into session.max_age.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if !strings.Contains(key, "__") {
		return "", nil
	}
	key = strings.ReplaceAll(key, "__", ".")
	if key == "http.cors_origins" || key == "http.trusted_proxies" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// applyConventionalEnv honours DATABASE_URL and PORT when nothing more
// specific set the corresponding keys.
func applyConventionalEnv(k *koanf.Koanf, environ []string) {
	lookup := func(name string) string {
		for _, kv := range environ {
			if n, v, ok := strings.Cut(kv, "="); ok && n == name {
				return v
			}
		}
		return ""
	}

	if k.String("database.url") == "" {
		if url := lookup("DATABASE_URL"); url != "" {
			_ = k.Set("database.url", url)
		}
	}
	if k.String("http.addr") == defaultHTTPAddr {
		if port := lookup("PORT"); port != "" {
			_ = k.Set("http.addr", ":"+port)
		}
	}
}

func flagKey(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	return key, f.Value.String()
}
