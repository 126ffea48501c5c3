package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/turngate/turngate/internal/agent"
	"github.com/turngate/turngate/internal/config"
	"github.com/turngate/turngate/internal/events"
	"github.com/turngate/turngate/internal/listener"
	"github.com/turngate/turngate/internal/provider"
	"github.com/turngate/turngate/internal/session"
	"github.com/turngate/turngate/internal/store"
	"github.com/turngate/turngate/internal/tools"
)

const defaultSystemPrompt = "You are turngate, a careful coding agent. Use the available tools to read, write, and edit files, and to run shell commands."

func main() {
	if err := setupFileLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logging: %v\n", err)
	}

	configPath := flag.String("config", "config.toml", "path to config.toml")
	flag.Parse()

	if code := run(*configPath); code != 0 {
		os.Exit(code)
	}
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return 1
	}

	apiKey, err := config.LoadCredential()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	systemPrompt, err := config.LoadSystemPrompt(defaultSystemPrompt)
	if err != nil {
		fmt.Printf("Error loading system prompt override: %v\n", err)
		return 1
	}

	providerName, providerCfg := resolveProvider(cfg)

	providerRegistry := provider.NewRegistry()
	providerRegistry.RegisterFactory(providerName, provider.NewOpenAIFactory(providerName, providerCfg.Endpoint, apiKey))

	prov, err := providerRegistry.Create(providerName, providerCfg.Model, provider.Options{
		Temperature: providerCfg.Temperature,
	})
	if err != nil {
		fmt.Printf("Error creating provider: %v\n", err)
		return 1
	}

	cache := openWebCache(cfg)
	if cache != nil {
		defer cache.Close()
	}

	registry := tools.Default(cacheGetter(cache), cacheSetter(cache))

	var sess *session.Session
	a := agent.New(prov, providerName, providerCfg.Model, registry, systemPrompt, func(e events.Event) {
		sess.BroadcastEvent(e)
	})
	if err := a.Start(); err != nil {
		fmt.Printf("Error starting agent: %v\n", err)
		return 1
	}
	defer a.Stop()

	sess = session.New(a, providerRegistry, provider.Options{Temperature: providerCfg.Temperature})

	snapshotPath, err := sessionSnapshotPath()
	if err == nil {
		if snap, err := store.LoadSnapshot(snapshotPath); err != nil {
			log.Warn().Err(err).Msg("main: failed to load session snapshot")
		} else if snap != nil {
			log.Info().Str("model", snap.Model).Int("messages", len(snap.Messages)).Msg("main: session snapshot found; its messages are not loaded into the agent")
		}
	}

	l := listener.New(sess, cfg.Listen.AddrOrDefault())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Printf("Error: listener failed: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		log.Info().Msg("main: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := l.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("main: listener shutdown error")
		}
		<-errCh
	}

	return 0
}

const shutdownGrace = 10 * time.Second

func resolveProvider(cfg *config.Config) (string, config.ProviderConfig) {
	name := cfg.DefaultProvider
	if name == "" {
		for candidate := range cfg.Providers {
			name = candidate
			break
		}
	}
	return name, cfg.Providers[name]
}

func openWebCache(cfg *config.Config) *store.Cache {
	cacheDir, err := config.EnsureDataDir()
	if err != nil {
		fmt.Printf("Warning: cache dir failed: %v\n", err)
		return nil
	}
	ttl := time.Duration(cfg.Cache.CacheTTLOrDefault()) * time.Hour
	cache, err := store.Open(filepath.Join(cacheDir, "cache.db"), ttl)
	if err != nil {
		fmt.Printf("Warning: cache open failed: %v\n", err)
		return nil
	}
	return cache
}

func cacheGetter(c *store.Cache) func(string) (string, bool) {
	return func(query string) (string, bool) {
		if c == nil {
			return "", false
		}
		if result, ok := c.GetSearch(query); ok {
			return result, true
		}
		return c.SearchCachedContent(query)
	}
}

func cacheSetter(c *store.Cache) func(string, string) {
	return func(query, result string) {
		if c != nil {
			c.SetSearch(query, result)
		}
	}
}

func sessionSnapshotPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

func setupFileLogging() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, "turngate.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}
