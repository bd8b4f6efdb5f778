package main

// ---------------------------------------------------------------------------
// cmd_detections.go — list recent pattern detections
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func cmdDetections(args []string) {
	fs := flag.NewFlagSet("detections", flag.ExitOnError)
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	limit := fs.Int("limit", 50, "Maximum number of detections to return")
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
	body, err := apiGet(fmt.Sprintf("%s/api/v1/detections?limit=%d", base, *limit), apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if outFmt == FormatJSON {
		printJSON(os.Stdout, body)
		return
	}

	var resp struct {
		Detections []struct {
			PatternID       string    `json:"pattern_id"`
			PatternName     string    `json:"pattern_name"`
			DetectedAt      time.Time `json:"detected_at"`
			MatchedEventIDs []string  `json:"matched_event_ids"`
			Description     string    `json:"description"`
		} `json:"detections"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Println(string(body))
		return
	}

	if resp.Total == 0 {
		fmt.Fprintf(os.Stdout, "%s No detections yet.\n", dim("▸"))
		return
	}

	t := NewTable(os.Stdout, "DETECTED AT", "PATTERN", "EVENTS", "DESCRIPTION")
	for _, d := range resp.Detections {
		t.AddRow(d.DetectedAt.Format(time.RFC3339), d.PatternName,
			fmt.Sprintf("%d", len(d.MatchedEventIDs)), truncate(d.Description, 50))
	}
	t.Render()
	fmt.Fprintf(os.Stdout, "%d detection(s)\n", resp.Total)
}
