// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the filevault configuration file.
//
// The file is a list of "key = value" lines. Blank lines and lines starting
// with '#' are ignored, as are unknown keys. Every key can be overridden by
// an environment variable named FILEVAULT_<KEY>.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FILEVAULT_"

// DefaultGRPCMaxMsg is the default gRPC message size limit in bytes. It caps
// the largest encrypted blob the grpc backend and filevault-blobd carry.
const DefaultGRPCMaxMsg = 64 << 20

// Backend names.
const (
	BlobStoreFile   = "file"
	BlobStoreKubo   = "kubo"
	BlobStoreGRPC   = "grpc"
	BlobStoreMemory = "memory"

	LedgerBolt     = "bolt"
	LedgerAnchored = "anchored"
	LedgerMemory   = "memory"

	CipherLegacy = "legacy"
	CipherSealed = "sealed"
)

// Config holds all settings for the vault and the blob daemon.
type Config struct {
	DataDir     string
	Network     string
	LogLevel    string
	LogFormat   string
	LogFile     string
	ListenAddr  string
	MetricsAddr string

	BlobStore   string
	KuboURL     string
	GRPCTarget  string
	GRPCMaxMsg  int
	BlobRetries int
	BlobCache   int

	Ledger       string
	RPCURL       string
	RPCUser      string
	RPCPass      string
	FeeRate      uint64
	SeedPassword string

	CallTimeout time.Duration
	Cipher      string
	SealSecret  string
	Intents     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultDataDir(),
		Network:     "mainnet",
		LogLevel:    "info",
		LogFormat:   "text",
		ListenAddr:  ":9090",
		MetricsAddr: ":9091",
		BlobStore:   BlobStoreFile,
		GRPCMaxMsg:  DefaultGRPCMaxMsg,
		BlobRetries: 3,
		Ledger:      LedgerBolt,
		FeeRate:     1,
		CallTimeout: 30 * time.Second,
		Cipher:      CipherLegacy,
	}
}

// DefaultDataDir returns ~/.filevault, or ./.filevault if the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".filevault"
	}
	return filepath.Join(home, ".filevault")
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// field binds a config key to its Config member.
type field struct {
	key    string
	secret bool
	typed  bool // non-string; an empty value keeps the default
	get    func(*Config) string
	set    func(*Config, string) error
}

func stringField(key string, secret bool, p func(*Config) *string) field {
	return field{
		key:    key,
		secret: secret,
		get:    func(c *Config) string { return *p(c) },
		set:    func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

var fields = []field{
	stringField("datadir", false, func(c *Config) *string { return &c.DataDir }),
	stringField("network", false, func(c *Config) *string { return &c.Network }),
	stringField("loglevel", false, func(c *Config) *string { return &c.LogLevel }),
	stringField("logformat", false, func(c *Config) *string { return &c.LogFormat }),
	stringField("logfile", false, func(c *Config) *string { return &c.LogFile }),
	stringField("listen", false, func(c *Config) *string { return &c.ListenAddr }),
	stringField("metrics", false, func(c *Config) *string { return &c.MetricsAddr }),
	stringField("blobstore", false, func(c *Config) *string { return &c.BlobStore }),
	stringField("kubo_url", false, func(c *Config) *string { return &c.KuboURL }),
	stringField("grpc_target", false, func(c *Config) *string { return &c.GRPCTarget }),
	{
		key:   "grpc_max_msg",
		typed: true,
		get: func(c *Config) string { return strconv.Itoa(c.GRPCMaxMsg) },
		set: func(c *Config, v string) (err error) {
			c.GRPCMaxMsg, err = strconv.Atoi(v)
			return err
		},
	},
	{
		key:   "blob_retries",
		typed: true,
		get: func(c *Config) string { return strconv.Itoa(c.BlobRetries) },
		set: func(c *Config, v string) (err error) {
			c.BlobRetries, err = strconv.Atoi(v)
			return err
		},
	},
	{
		key:   "blob_cache",
		typed: true,
		get: func(c *Config) string { return strconv.Itoa(c.BlobCache) },
		set: func(c *Config, v string) (err error) {
			c.BlobCache, err = strconv.Atoi(v)
			return err
		},
	},
	stringField("ledger", false, func(c *Config) *string { return &c.Ledger }),
	stringField("rpc_url", false, func(c *Config) *string { return &c.RPCURL }),
	stringField("rpc_user", false, func(c *Config) *string { return &c.RPCUser }),
	stringField("rpc_pass", true, func(c *Config) *string { return &c.RPCPass }),
	{
		key:   "feerate",
		typed: true,
		get: func(c *Config) string { return strconv.FormatUint(c.FeeRate, 10) },
		set: func(c *Config, v string) (err error) {
			c.FeeRate, err = strconv.ParseUint(v, 10, 64)
			return err
		},
	},
	stringField("seed_password", true, func(c *Config) *string { return &c.SeedPassword }),
	{
		key:   "call_timeout",
		typed: true,
		get: func(c *Config) string { return c.CallTimeout.String() },
		set: func(c *Config, v string) (err error) {
			c.CallTimeout, err = time.ParseDuration(v)
			return err
		},
	},
	stringField("cipher", false, func(c *Config) *string { return &c.Cipher }),
	stringField("seal_secret", true, func(c *Config) *string { return &c.SealSecret }),
	{
		key:   "intents",
		typed: true,
		get: func(c *Config) string { return strconv.FormatBool(c.Intents) },
		set: func(c *Config, v string) (err error) {
			c.Intents, err = strconv.ParseBool(v)
			return err
		},
	},
}

func lookupField(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// LoadConfig reads path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		fld, ok := lookupField(key)
		if !ok {
			continue
		}
		if value == "" && fld.typed {
			continue
		}
		if err := fld.set(&cfg, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %s: %w", ErrInvalidConfigLine, lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

// SaveConfig writes cfg to path, creating parent directories. Secret keys
// are written only when set.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# FileVault Configuration\n")
	for _, f := range fields {
		v := f.get(&cfg)
		if f.secret && v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", f.key, v)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays FILEVAULT_<KEY> variables from env onto cfg.
func ApplyEnv(cfg Config, env map[string]string) (Config, error) {
	for _, f := range fields {
		name := EnvPrefix + strings.ToUpper(f.key)
		v, ok := env[name]
		if !ok || v == "" {
			continue
		}
		if err := f.set(&cfg, v); err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidEnv, name, err)
		}
	}
	return cfg, nil
}

// Environ returns the process environment as a map for ApplyEnv.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
