// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidEnv indicates an environment override could not be parsed.
	ErrInvalidEnv = errors.New("config: invalid environment override")

	// ErrInvalidLogFormat indicates the log format is not "text" or "json".
	ErrInvalidLogFormat = errors.New("config: invalid log format (must be \"text\" or \"json\")")

	// ErrInvalidBackend indicates an unknown or incompletely configured
	// blob store or ledger backend.
	ErrInvalidBackend = errors.New("config: invalid backend")

	// ErrInvalidCipherMode indicates the cipher mode is unknown or sealed
	// mode lacks a secret.
	ErrInvalidCipherMode = errors.New("config: invalid cipher mode (must be \"legacy\" or \"sealed\" with seal_secret)")

	// ErrInvalidTimeout indicates a non-positive call timeout or negative
	// retry count.
	ErrInvalidTimeout = errors.New("config: invalid timeout or retry setting")

	// ErrInvalidMsgSize indicates a non-positive grpc_max_msg.
	ErrInvalidMsgSize = errors.New("config: grpc_max_msg must be positive")
)
