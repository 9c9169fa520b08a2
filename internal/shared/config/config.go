package config

import (
	"os"

	"gopkg.in/ini.v1"

	"proxypool_nexus/internal/shared/types"
)

// LoadIni loads the behavior configuration file into cfg and applies
// defaults for anything the file leaves unset.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnv(&cfg.ProviderConf.BaseURL, "PROVIDER_BASE_URL")
	ApplyDefaults(cfg)
	return nil
}

// ApplyDefaults fills in zero-valued fields so a sparse ini file still
// produces a runnable configuration.
func ApplyDefaults(cfg *types.Config) {
	if cfg.PoolConf.TargetSize <= 0 {
		cfg.PoolConf.TargetSize = 10
	}
	if cfg.PoolConf.MinThreshold <= 0 {
		cfg.PoolConf.MinThreshold = 3
	}
	if cfg.PoolConf.CheckIntervalSec <= 0 {
		cfg.PoolConf.CheckIntervalSec = 60
	}
	if cfg.PoolConf.MaxRefillAttempts <= 0 {
		cfg.PoolConf.MaxRefillAttempts = 5
	}
	if cfg.PoolConf.AttemptDelaySec <= 0 {
		cfg.PoolConf.AttemptDelaySec = 3
	}
	if cfg.PoolConf.BatchSize <= 0 {
		cfg.PoolConf.BatchSize = 10
	}
	if cfg.PoolConf.OverFetchMultiplier <= 0 {
		cfg.PoolConf.OverFetchMultiplier = 2
	}
	if cfg.PoolConf.Concurrency <= 0 {
		cfg.PoolConf.Concurrency = 5
	}
	if cfg.ProviderConf.Country == "" {
		cfg.ProviderConf.Country = "us"
	}
	if cfg.ProviderConf.Protocol == "" {
		cfg.ProviderConf.Protocol = "http"
	}
	if cfg.ProviderConf.TimeoutSec <= 0 {
		cfg.ProviderConf.TimeoutSec = 15
	}
	if cfg.ValidatorConf.TimeoutSec <= 0 {
		cfg.ValidatorConf.TimeoutSec = 10
	}
	if cfg.CacheConf.TTLSec <= 0 {
		cfg.CacheConf.TTLSec = 600
	}
	if cfg.LogConf.Level == "" {
		cfg.LogConf.Level = "info"
	}
}

func overrideFromEnv(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
