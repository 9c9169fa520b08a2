package types

import "time"

// PoolConf controls the target size and refill behavior of the proxy pool.
type PoolConf struct {
	TargetSize          int `ini:"target_size"`           // pool size the refill controller aims for
	MinThreshold        int `ini:"min_threshold"`         // low-water mark that triggers an automatic refill
	CheckIntervalSec    int `ini:"check_interval_seconds"`
	MaxRefillAttempts   int `ini:"max_refill_attempts"`
	AttemptDelaySec     int `ini:"attempt_delay_seconds"`
	BatchSize           int `ini:"batch_size"`
	OverFetchMultiplier int `ini:"over_fetch_multiplier"` // candidates requested per missing slot
	Concurrency         int `ini:"concurrency"`           // validation probes in flight per sub-batch
}

// ProviderConf configures the upstream proxy source API.
type ProviderConf struct {
	BaseURL        string `ini:"base_url"`
	Country        string `ini:"country"`
	Protocol       string `ini:"protocol"` // "http" or "socks5"
	EnableScrapers bool   `ini:"enable_scrapers"`
	TimeoutSec     int    `ini:"timeout_seconds"`
}

// ValidatorConf configures the live probe used to classify candidates.
type ValidatorConf struct {
	ProbeURL    string `ini:"probe_url"`
	ProbeMarker string `ini:"probe_marker"` // substring the probe body must contain
	TimeoutSec  int    `ini:"timeout_seconds"`
}

// CacheConf configures the validation result cache.
type CacheConf struct {
	Enabled bool `ini:"enabled"`
	TTLSec  int  `ini:"ttl_seconds"`
}

// WebConf configures the status web service.
type WebConf struct {
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config is the unified configuration structure mapped from the ini file.
type Config struct {
	PoolConf      `ini:"pool"`
	ProviderConf  `ini:"provider"`
	ValidatorConf `ini:"validator"`
	CacheConf     `ini:"cache"`
	WebConf       `ini:"web"`
	LogConf       `ini:"log"`
}

// CheckInterval returns the scheduler period as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.PoolConf.CheckIntervalSec) * time.Second
}

// AttemptDelay returns the wait between unsatisfied refill attempts.
func (c *Config) AttemptDelay() time.Duration {
	return time.Duration(c.PoolConf.AttemptDelaySec) * time.Second
}

// CacheTTL returns the maximum age at which a cached validation result is
// still trusted.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheConf.TTLSec) * time.Second
}
