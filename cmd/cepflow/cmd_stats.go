package main

// ---------------------------------------------------------------------------
// cmd_stats.go — show lifetime processing statistics
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"
)

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
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
	body, err := apiGet(base+"/api/v1/statistics", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if outFmt == FormatJSON {
		printJSON(os.Stdout, body)
		return
	}

	var stats struct {
		TotalEvents      int64            `json:"total_events"`
		EventsByType     map[string]int64 `json:"events_by_type"`
		EventsByPriority map[string]int64 `json:"events_by_priority"`
		PatternsDetected int64            `json:"patterns_detected"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		fmt.Println(string(body))
		return
	}

	fmt.Fprintf(os.Stdout, "%s Lifetime statistics\n\n", bold("▸"))
	t := NewTable(os.Stdout, "METRIC", "COUNT")
	t.AddRow("Total events", fmt.Sprintf("%d", stats.TotalEvents))
	t.AddRow("Patterns detected", fmt.Sprintf("%d", stats.PatternsDetected))
	for _, k := range sortedKeys(stats.EventsByType) {
		t.AddRow("Type: "+k, fmt.Sprintf("%d", stats.EventsByType[k]))
	}
	for _, k := range sortedKeys(stats.EventsByPriority) {
		t.AddRow("Priority: "+k, fmt.Sprintf("%d", stats.EventsByPriority[k]))
	}
	t.Render()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
