// Package config adapts the wallet engine's shared pkg/config loader for
// the HTTP adapter: one listen address and one data directory, both sourced
// from the same viper/env layering cmd/cli uses, so the two front-ends
// never disagree about where the demo chain/coin/blind stores live.
package config

import (
	"github.com/namebasehq/hsd/pkg/config"
)

// ServerConfig is the slice of the shared Config the HTTP adapter needs.
type ServerConfig struct {
	ListenAddr string
	DataDir    string
}

// AppConfig holds the configuration loaded by Load.
var AppConfig ServerConfig

// Load delegates to pkg/config.LoadFromEnv and narrows the result to what
// the HTTP adapter cares about.
func Load() (*ServerConfig, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	AppConfig = ServerConfig{
		ListenAddr: cfg.HTTP.ListenAddr,
		DataDir:    cfg.Wallet.DataDir,
	}
	return &AppConfig, nil
}
