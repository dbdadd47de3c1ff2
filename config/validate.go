// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}
	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("%w: metrics: %w", ErrInvalidListenAddr, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}
	if f := strings.ToLower(cfg.LogFormat); f != "text" && f != "json" {
		return ErrInvalidLogFormat
	}

	switch cfg.BlobStore {
	case BlobStoreFile, BlobStoreMemory:
	case BlobStoreKubo:
		if cfg.KuboURL == "" {
			return fmt.Errorf("%w: blobstore kubo requires kubo_url", ErrInvalidBackend)
		}
	case BlobStoreGRPC:
		if cfg.GRPCTarget == "" {
			return fmt.Errorf("%w: blobstore grpc requires grpc_target", ErrInvalidBackend)
		}
	default:
		return fmt.Errorf("%w: blobstore %q", ErrInvalidBackend, cfg.BlobStore)
	}

	switch cfg.Ledger {
	case LedgerBolt, LedgerMemory, LedgerAnchored:
	default:
		return fmt.Errorf("%w: ledger %q", ErrInvalidBackend, cfg.Ledger)
	}

	switch cfg.Cipher {
	case CipherLegacy:
	case CipherSealed:
		if cfg.SealSecret == "" {
			return ErrInvalidCipherMode
		}
	default:
		return ErrInvalidCipherMode
	}

	if cfg.CallTimeout <= 0 || cfg.BlobRetries < 0 || cfg.BlobCache < 0 {
		return ErrInvalidTimeout
	}

	if cfg.GRPCMaxMsg <= 0 {
		return ErrInvalidMsgSize
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
