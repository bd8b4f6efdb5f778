package main

// ---------------------------------------------------------------------------
// cmd_status.go — show status of a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	format := fs.String("format", "table", "Output format: table, json")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	hostVal := envHost(*host)
	portVal := envPort(*port)
	apiKey := envAPIKey(*apiKeyFlag)
	outFmt := parseFormat(*format)

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(hostVal, portVal)
	body, err := apiGet(base+"/api/v1/status", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if outFmt == FormatJSON {
		printJSON(os.Stdout, body)
		return
	}

	var status map[string]interface{}
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Println(string(body))
		return
	}

	monitorState := red("stopped")
	if running, _ := status["monitor_running"].(bool); running {
		monitorState = green("running")
	}

	fmt.Fprintf(os.Stdout, "%s cepflow is %s\n\n", green("✓"), green("running"))
	t := NewTable(os.Stdout, "FIELD", "VALUE")
	t.AddRow("Buffer", fmt.Sprintf("%v / %v events", status["buffer_len"], status["buffer_capacity"]))
	t.AddRow("Patterns registered", fmt.Sprintf("%v", status["patterns"]))
	t.AddRow("Events processed", fmt.Sprintf("%v", status["total_events"]))
	t.AddRow("Patterns detected", fmt.Sprintf("%v", status["patterns_detected"]))
	t.AddRow("Monitor", monitorState)
	t.Render()
}
