package config

// Package config provides a reusable loader for the wallet engine's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/namebasehq/hsd/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified configuration for a wallet process (CLI or the
// optional HTTP adapter). It mirrors the structure of the YAML files under
// cmd/config, layered with environment variable overrides.
type Config struct {
	Wallet struct {
		DataDir      string `mapstructure:"data_dir" json:"data_dir"`
		DefaultFile  string `mapstructure:"default_file" json:"default_file"`
		ChainStubDB  string `mapstructure:"chain_stub_db" json:"chain_stub_db"`
		CoinStoreDB  string `mapstructure:"coin_store_db" json:"coin_store_db"`
		BlindStoreDB string `mapstructure:"blind_store_db" json:"blind_store_db"`
	} `mapstructure:"wallet" json:"wallet"`

	Batch struct {
		OutputBudget int `mapstructure:"output_budget" json:"output_budget"`
	} `mapstructure:"batch" json:"batch"`

	Funding struct {
		Policy  string `mapstructure:"policy" json:"policy"` // age|random|all|smart
		FeeRate uint64 `mapstructure:"fee_rate" json:"fee_rate"`
	} `mapstructure:"funding" json:"funding"`

	Idempotency struct {
		CacheCapacity int `mapstructure:"cache_capacity" json:"cache_capacity"`
	} `mapstructure:"idempotency" json:"idempotency"`

	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"http" json:"http"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

func setDefaults() {
	viper.SetDefault("wallet.data_dir", "./.hsw")
	viper.SetDefault("wallet.default_file", "wallet.json")
	viper.SetDefault("wallet.chain_stub_db", "chain.json")
	viper.SetDefault("wallet.coin_store_db", "coins.json")
	viper.SetDefault("wallet.blind_store_db", "blinds.json")
	viper.SetDefault("batch.output_budget", 200)
	viper.SetDefault("funding.policy", "age")
	viper.SetDefault("funding.fee_rate", 0)
	viper.SetDefault("idempotency.cache_capacity", 1024)
	viper.SetDefault("http.listen_addr", ":8080")
	viper.SetDefault("logging.level", "info")
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. A missing config file is not fatal: defaults plus environment
// variables are enough to run against the demo chain stub.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	viper.AutomaticEnv() // picks up from .env via godotenv.Load() in callers
	viper.SetEnvPrefix("HSW")

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the HSW_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("HSW_ENV", ""))
}
