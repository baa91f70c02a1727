package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polyedge/config"
	"github.com/alejandrodnm/polyedge/internal/adapters/notify"
	"github.com/alejandrodnm/polyedge/internal/adapters/odds"
	"github.com/alejandrodnm/polyedge/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyedge/internal/adapters/riskai"
	"github.com/alejandrodnm/polyedge/internal/backoff"
	"github.com/alejandrodnm/polyedge/internal/monitor"
	"github.com/alejandrodnm/polyedge/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one refresh cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full result table (default: compact 1-line)")
	noStream := flag.Bool("no-stream", false, "disable websocket feed, poll REST only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polyedge starting",
		"config", *configPath,
		"refresh", cfg.RefreshInterval(),
		"discovery", cfg.DiscoveryInterval(),
		"bankroll", cfg.Staking.Bankroll,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.Monitor.FeeDefaultBps)

	providers, closers := buildSignalProviders(cfg)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	var annotator monitor.RiskAnnotator
	if cfg.Signals.AIEnabled {
		if cfg.Signals.AnthropicKey == "" {
			slog.Warn("ai_enabled but ANTHROPIC_API_KEY not set, disabling AI signal")
		} else {
			annotator = riskai.NewAnnotator(cfg.Signals.AnthropicKey, "")
		}
	}

	publisher := notify.NewConsole(*table)
	registry := monitor.NewRegistry()

	var feed *monitor.Feed
	if cfg.Feed.Enabled && !*noStream && !*once {
		feed = monitor.NewFeed(client, registry, dialStream, cfg.Feed.WSURL,
			cfg.SilenceTimeout(), reconnectPolicy(cfg), cfg.RefreshInterval())
	}

	mon := monitor.New(cfg, client, client, providers, annotator, publisher, registry, feed)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go reloadOnSIGHUP(ctx, *configPath, mon)

	if *once {
		if err := mon.RunOnce(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("monitor exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyedge stopped cleanly")
}

// reloadOnSIGHUP recarga la configuración en caliente. Una configuración
// inválida se rechaza con log y la anterior sigue en efecto; la nueva se
// aplica a partir del siguiente ciclo.
func reloadOnSIGHUP(ctx context.Context, path string, mon *monitor.Monitor) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				slog.Error("config reload rejected, keeping previous", "err", err)
				continue
			}
			mon.UpdateConfig(cfg)
			slog.Info("config reloaded", "path", path, "bankroll", cfg.Staking.Bankroll)
		}
	}
}

// buildSignalProviders arma los providers habilitados en la configuración.
// Devuelve también las funciones de cierre para los que mantienen recursos.
func buildSignalProviders(cfg *config.Config) ([]ports.SignalProvider, []func()) {
	var providers []ports.SignalProvider
	var closers []func()

	if cfg.Signals.OddsCSV != "" {
		providers = append(providers, odds.NewCSVProvider(cfg.Signals.OddsCSV))
		slog.Info("sportsbook odds enabled", "csv", cfg.Signals.OddsCSV)
	}

	if cfg.Signals.OddsDSN != "" {
		sp, err := odds.NewSQLiteProvider(cfg.Signals.OddsDSN)
		if err != nil {
			slog.Error("failed to open model odds db", "err", err, "dsn", cfg.Signals.OddsDSN)
			os.Exit(1)
		}
		providers = append(providers, sp)
		closers = append(closers, func() { sp.Close() })
		slog.Info("model odds enabled", "dsn", cfg.Signals.OddsDSN)
	}

	return providers, closers
}

// dialStream adapta el stream de Polymarket a la interfaz del feed.
func dialStream(ctx context.Context, wsURL string, tokenIDs []string) (monitor.BookStream, error) {
	return polymarket.DialStream(ctx, wsURL, tokenIDs)
}

func reconnectPolicy(cfg *config.Config) backoff.Policy {
	return backoff.Policy{
		Base:        cfg.ReconnectBase(),
		Cap:         cfg.ReconnectCap(),
		MaxAttempts: cfg.Feed.ReconnectMaxRetries,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
