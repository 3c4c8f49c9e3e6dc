package config

// Package config provides a reusable loader for the console's configuration
// files and environment variables, mirroring the teacher's viper-backed
// pkg/config loader but scoped to SPEC_FULL.md §1.3's domain sections
// instead of a network/consensus/VM node config.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"channel-console/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a console process: which entity
// it operates, how it reaches its jurisdiction adapter, and how ACE/JBP
// timing and logging behave.
type Config struct {
	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		GossipPeers    []string `mapstructure:"gossip_peers" json:"gossip_peers"`
	} `mapstructure:"network" json:"network"`

	Entity struct {
		Id          string `mapstructure:"id" json:"id"`
		MnemonicEnv string `mapstructure:"mnemonic_env" json:"mnemonic_env"`
		Name        string `mapstructure:"name" json:"name"`
	} `mapstructure:"entity" json:"entity"`

	Jurisdiction struct {
		RPCEndpoint   string `mapstructure:"rpc_endpoint" json:"rpc_endpoint"`
		DefaultPreset string `mapstructure:"default_preset" json:"default_preset"`
	} `mapstructure:"jurisdiction" json:"jurisdiction"`

	Consensus struct {
		ProposalTimeoutMS int `mapstructure:"proposal_timeout_ms" json:"proposal_timeout_ms"`
		RetryBaseBackoffMS int `mapstructure:"retry_base_backoff_ms" json:"retry_base_backoff_ms"`
		RetryMaxAttempts  int `mapstructure:"retry_max_attempts" json:"retry_max_attempts"`
	} `mapstructure:"consensus" json:"consensus"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHANNEL_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHANNEL_ENV", ""))
}
