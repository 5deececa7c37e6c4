package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	DatabaseDSN  string `toml:"database_dsn"`
	RedisAddr    string `toml:"redis_addr"`
	ListenAddr   string `toml:"listen_addr"`
	PumpInterval string `toml:"pump_interval"`
	PumpBatch    int    `toml:"pump_batch"`
	Bootstrap    bool   `toml:"bootstrap"`
}

type workerConfig struct {
	DatabaseDSN  string
	RedisAddr    string
	ListenAddr   string
	PumpInterval time.Duration
	PumpBatch    int
	Bootstrap    bool
}

func defaultConfig() workerConfig {
	return workerConfig{
		DatabaseDSN:  "evalworker.db",
		ListenAddr:   ":8090",
		PumpInterval: 10 * time.Second,
		PumpBatch:    50,
		Bootstrap:    true,
	}
}

func loadConfig(path string) (workerConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return workerConfig{}, fmt.Errorf("load worker config: %w", err)
	}

	if meta.IsDefined("database_dsn") {
		dsn := strings.TrimSpace(raw.DatabaseDSN)
		if dsn != "" {
			cfg.DatabaseDSN = dsn
		}
	}
	if meta.IsDefined("redis_addr") {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("listen_addr") {
		addr := strings.TrimSpace(raw.ListenAddr)
		if addr != "" {
			cfg.ListenAddr = addr
		}
	}
	if meta.IsDefined("pump_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PumpInterval))
		if err != nil {
			return workerConfig{}, fmt.Errorf("parse pump_interval: %w", err)
		}
		cfg.PumpInterval = d
	}
	if meta.IsDefined("pump_batch") {
		if raw.PumpBatch <= 0 {
			return workerConfig{}, fmt.Errorf("pump_batch must be positive, got %d", raw.PumpBatch)
		}
		cfg.PumpBatch = raw.PumpBatch
	}
	if meta.IsDefined("bootstrap") {
		cfg.Bootstrap = raw.Bootstrap
	}

	return cfg, nil
}
