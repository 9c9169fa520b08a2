package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"proxypool_nexus/internal/service/web"
	"proxypool_nexus/internal/shared/config"
	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/internal/shared/types"
	manager "proxypool_nexus/proxypool"
	"proxypool_nexus/proxypool/provider"
	"proxypool_nexus/proxypool/validator"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "poolmanager.ini")

	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	providerTimeout := time.Duration(cfg.ProviderConf.TimeoutSec) * time.Second
	providers := []provider.Provider{
		provider.NewAPIProvider(cfg.ProviderConf.BaseURL, providerTimeout),
	}
	if cfg.ProviderConf.EnableScrapers {
		providers = append(providers,
			provider.NewScrapeProvider("https://proxydb.net", providerTimeout),
			provider.NewCollyProvider("https://www.kuaidaili.com/free/inha/1/", providerTimeout),
		)
	}

	v := validator.New(
		cfg.ValidatorConf.ProbeURL,
		cfg.ValidatorConf.ProbeMarker,
		time.Duration(cfg.ValidatorConf.TimeoutSec)*time.Second,
	)

	hub := web.NewHub()
	go hub.Run()

	m := manager.New(cfg, providers, v, func(stats manager.AttemptStats) {
		hub.BroadcastPoolUpdate(web.PoolEvent{
			Timestamp: time.Now(),
			PoolSize:  stats.PoolSize,
			Target:    stats.Target,
			Detail:    stats,
		})
	})

	var wg sync.WaitGroup
	web.StartServer(&wg, cfg, m, hub)
	m.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received.")
	m.Stop()
}
