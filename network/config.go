package network

import "fmt"

// Environment variables consulted by ResolveConfig.
const (
	EnvRPCURL  = "FILEVAULT_RPC_URL"
	EnvRPCUser = "FILEVAULT_RPC_USER"
	EnvRPCPass = "FILEVAULT_RPC_PASS"
)

// RPCConfig holds the connection parameters for a BSV node's JSON-RPC interface.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets contains default RPC configurations for known networks.
// Mainnet is omitted and must be configured explicitly.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "filevault", Password: "filevault"},
	"testnet": {URL: "http://localhost:18333", User: "filevault", Password: "filevault"},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. explicit values (config file or flags)
//  2. environment variables (FILEVAULT_RPC_URL, FILEVAULT_RPC_USER, FILEVAULT_RPC_PASS)
//  3. network presets (regtest/testnet only)
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env[EnvRPCURL]; v != "" {
		result.URL = v
	}
	if v := env[EnvRPCUser]; v != "" {
		result.User = v
	}
	if v := env[EnvRPCPass]; v != "" {
		result.Password = v
	}

	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires explicit RPC configuration (set rpc_url or %s)", network, EnvRPCURL)
	}
	return &result, nil
}
