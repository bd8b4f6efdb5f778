package main

// ---------------------------------------------------------------------------
// helpers.go — TTY detection, color, error helpers, env-based overrides
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
	"strconv"
)

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTTY(os.Stderr)
}

func ansi(code, s string) string {
	if !colorEnabled() {
		return s
	}
	return code + s + "\033[0m"
}

func red(s string) string    { return ansi("\033[91m", s) }
func yellow(s string) string { return ansi("\033[93m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func cyan(s string) string   { return ansi("\033[36m", s) }
func dim(s string) string    { return ansi("\033[90m", s) }
func bold(s string) string   { return ansi("\033[1m", s) }

// errorf prints to stderr and exits non-zero.
func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	os.Exit(1)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, yellow("warning: ")+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Environment overrides: flags win, then env, then defaults.
// ---------------------------------------------------------------------------

func envConfig(flagVal string) string {
	if flagVal != "configs/default.yaml" && flagVal != "" {
		return flagVal
	}
	if env := os.Getenv("CEPFLOW_CONFIG"); env != "" {
		return env
	}
	return flagVal
}

func envHost(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if env := os.Getenv("CEPFLOW_HOST"); env != "" {
		return env
	}
	return "127.0.0.1"
}

func envPort(flagVal int) int {
	if flagVal != 0 {
		return flagVal
	}
	if env := os.Getenv("CEPFLOW_PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil && p > 0 {
			return p
		}
	}
	return 1890
}

func envAPIKey(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv("CEPFLOW_API_KEY")
}

func apiBase(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}
