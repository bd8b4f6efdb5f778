package main

// ---------------------------------------------------------------------------
// banner.go — ASCII banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	art := `
   ██████╗███████╗██████╗ ███████╗██╗      ██████╗ ██╗    ██╗
  ██╔════╝██╔════╝██╔══██╗██╔════╝██║     ██╔═══██╗██║    ██║
  ██║     █████╗  ██████╔╝█████╗  ██║     ██║   ██║██║ █╗ ██║
  ██║     ██╔══╝  ██╔═══╝ ██╔══╝  ██║     ██║   ██║██║███╗██║
  ╚██████╗███████╗██║     ██║     ███████╗╚██████╔╝╚███╔███╔╝
   ╚═════╝╚══════╝╚═╝     ╚═╝     ╚══════╝ ╚═════╝  ╚══╝╚══╝
`
	if !colorEnabled() {
		return art + "\n  COMPLEX EVENT PROCESSING ENGINE\n"
	}
	return "\033[36m" + art + "\033[0m\n  " + bold("COMPLEX EVENT PROCESSING ENGINE") + "\n"
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "cepflow v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  cepflow <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-12s  %s\n", bold("up"), "Start the cepflow engine, API server, and monitor")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("status"), "Show status of a running cepflow instance")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("events"), "List buffered events or submit a new one")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("patterns"), "List registered patterns")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("detections"), "List recent pattern detections")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("stats"), "Show lifetime processing statistics")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("generate"), "Generate and submit randomized sample events")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("config"), "Show or initialize configuration")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--host <host>", "API host (default: 127.0.0.1, env: CEPFLOW_HOST)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--port <port>", "API port (default: 1890, env: CEPFLOW_PORT)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--api-key <key>", "API key (env: CEPFLOW_API_KEY)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json (default: table)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-22s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Start with defaults"))
	fmt.Fprintf(w, "  cepflow up\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Check a running instance"))
	fmt.Fprintf(w, "  cepflow status --format json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Submit an event from a file"))
	fmt.Fprintf(w, "  cepflow events submit --file event.json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Drive the engine with random sample traffic"))
	fmt.Fprintf(w, "  cepflow generate --count 50 --interval 200ms\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Fetch only critical events"))
	fmt.Fprintf(w, "  cepflow events --priority Critical --limit 20\n\n")
}
