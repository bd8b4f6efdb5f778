package main

// ---------------------------------------------------------------------------
// cmd_config.go — show or initialize configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cepflow/cepflow/internal/core"
)

func cmdConfig(args []string) {
	sub := "show"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		sub = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	force := fs.Bool("force", false, "Overwrite an existing config file on init")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	switch sub {
	case "show":
		cfg, err := core.LoadConfig(*configPath)
		if err != nil {
			errorf("loading config: %v", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			errorf("encoding config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s %s\n\n", dim("▸"), *configPath)
		os.Stdout.Write(out)
	case "init":
		if _, err := os.Stat(*configPath); err == nil && !*force {
			errorf("config file %s already exists (use --force to overwrite)", *configPath)
		}
		if err := core.SaveConfig(core.DefaultConfig(), *configPath); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Fprintf(os.Stdout, "%s Wrote default config to %s\n", green("✓"), *configPath)
	default:
		errorf("unknown config subcommand %q (expected show or init)", sub)
	}
}
