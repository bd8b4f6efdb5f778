package main

// ---------------------------------------------------------------------------
// cmd_up.go — start the cepflow engine
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cepflow/cepflow/internal/api"
	"github.com/cepflow/cepflow/internal/core"
	"github.com/cepflow/cepflow/internal/ingest"
)

func cmdUp(args []string) {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	noPresets := fs.Bool("no-presets", false, "Skip registering the built-in preset patterns")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	noColor := fs.Bool("no-color", false, "Disable color output")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if !cfg.AuthEnabled() && !*quiet {
		fmt.Fprintf(os.Stderr, "%s No API keys configured, API is running in open mode.\n", yellow("⚠"))
		fmt.Fprintf(os.Stderr, "    Set api_keys in config or the CEPFLOW_API_KEY env var to require auth.\n")
	}

	engine := core.NewEngine(cfg)

	if !*noPresets {
		for _, pattern := range core.PresetPatterns(engine.Logger) {
			if err := engine.Register(pattern); err != nil {
				engine.Logger.Warn().Err(err).Str("pattern_id", pattern.ID).Msg("failed to register preset pattern")
			}
		}
	}

	var bus *core.EventBus
	if cfg.Bus.Enabled {
		bus, err = core.NewEventBus(&cfg.Bus, engine.Logger)
		if err != nil {
			errorf("starting event bus: %v", err)
		}
		engine.AttachBus(bus)
		if cfg.Bus.Subscribe {
			err := bus.SubscribeToEvents(func(ev *core.Event) {
				if err := engine.Ingest(ev); err != nil {
					engine.Logger.Error().Err(err).Msg("failed to ingest remote event")
				}
			})
			if err != nil {
				errorf("subscribing to remote events: %v", err)
			}
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s Event bus connected (%s)\n", green("✓"), cfg.Bus.URL)
		}
	}

	var notifier *core.WebhookNotifier
	if cfg.Webhook.Enabled {
		if cfg.Webhook.URL == "" {
			errorf("webhook enabled but no url configured")
		}
		notifier = core.NewWebhookNotifier(cfg.Webhook, engine.Logger)
		engine.AttachSink(notifier)
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s Detection webhook: %s\n", green("✓"), cfg.Webhook.URL)
		}
	}

	monitor := core.NewMonitor(engine.Logger, cfg.Monitor.Tick)
	monitor.AddCheck(func() {
		engine.Logger.Debug().
			Int("buffer_len", engine.BufferLen()).
			Int("patterns", engine.PatternCount()).
			Int64("total_events", engine.Statistics().TotalEvents).
			Msg("monitor tick")
	})
	if cfg.Monitor.Enabled {
		monitor.Start()
	}

	srv := api.NewServer(engine, monitor)
	if err := srv.Start(); err != nil {
		errorf("starting API server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener *ingest.Listener
	if cfg.Ingest.Enabled {
		listener = ingest.NewListener(&cfg.Ingest, engine, engine.Logger)
		if err := listener.Start(ctx); err != nil {
			errorf("starting line listener: %v", err)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s Line ingestion on :%d (%s)\n",
				green("✓"), cfg.Ingest.Port, cfg.Ingest.Protocol)
		}
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s cepflow running, %d patterns registered, API on :%d\n",
			green("✓"), engine.PatternCount(), cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "%s Press Ctrl+C to stop\n", dim("▸"))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	if !*quiet {
		fmt.Fprintf(os.Stderr, "\n%s Received %s, shutting down...\n", dim("▸"), sig)
	}

	cancel()
	if listener != nil {
		listener.Stop()
	}
	srv.Stop()
	monitor.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	if bus != nil {
		bus.Close()
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s cepflow stopped.\n", green("✓"))
	}
}
