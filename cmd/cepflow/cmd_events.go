package main

// ---------------------------------------------------------------------------
// cmd_events.go — list buffered events or submit a new one
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"
)

func cmdEvents(args []string) {
	if len(args) > 0 && args[0] == "submit" {
		cmdEventsSubmit(args[1:])
		return
	}
	cmdEventsList(args)
}

func cmdEventsList(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	typeFilter := fs.String("type", "", "Filter by event type (e.g. SensorReading)")
	priorityFilter := fs.String("priority", "", "Filter by priority (e.g. Critical)")
	limit := fs.Int("limit", 100, "Maximum number of events to return")
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

	q := url.Values{}
	if *typeFilter != "" {
		q.Set("type", *typeFilter)
	}
	if *priorityFilter != "" {
		q.Set("priority", *priorityFilter)
	}
	q.Set("limit", fmt.Sprintf("%d", *limit))

	base := apiBase(hostVal, portVal)
	body, err := apiGet(base+"/api/v1/events?"+q.Encode(), apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if outFmt == FormatJSON {
		printJSON(os.Stdout, body)
		return
	}

	var resp struct {
		Events []struct {
			ID        string    `json:"id"`
			Type      string    `json:"type"`
			Timestamp time.Time `json:"timestamp"`
			Source    string    `json:"source"`
			Priority  string    `json:"priority"`
			Processed bool      `json:"processed"`
		} `json:"events"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Println(string(body))
		return
	}

	if resp.Total == 0 {
		fmt.Fprintf(os.Stdout, "%s No events in buffer.\n", dim("▸"))
		return
	}

	t := NewTable(os.Stdout, "ID", "TYPE", "TIMESTAMP", "SOURCE", "PRIORITY", "PROCESSED")
	for _, e := range resp.Events {
		processed := ""
		if e.Processed {
			processed = "yes"
		}
		t.AddRow(truncate(e.ID, 16), e.Type, e.Timestamp.Format(time.RFC3339),
			truncate(e.Source, 20), e.Priority, processed)
	}
	t.Render()
	fmt.Fprintf(os.Stdout, "%d event(s)\n", resp.Total)
}

func cmdEventsSubmit(args []string) {
	fs := flag.NewFlagSet("events submit", flag.ExitOnError)
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	inputFile := fs.String("file", "-", "Read event JSON from file (- for stdin)")
	timeoutStr := fs.String("timeout", "10s", "Request timeout")
	fs.Parse(args)

	hostVal := envHost(*host)
	portVal := envPort(*port)
	apiKey := envAPIKey(*apiKeyFlag)

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	var reader io.Reader
	if *inputFile == "-" || *inputFile == "" {
		fi, err := os.Stdin.Stat()
		if err != nil {
			errorf("checking stdin: %v", err)
		}
		if (fi.Mode() & os.ModeCharDevice) != 0 {
			errorf("no input provided, pipe event JSON via stdin or use --file <path>")
		}
		reader = os.Stdin
	} else {
		f, err := os.Open(*inputFile)
		if err != nil {
			errorf("opening input file %q: %v", *inputFile, err)
		}
		defer f.Close()
		reader = f
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		errorf("reading input: %v", err)
	}
	if len(payload) == 0 {
		errorf("empty input, provide event JSON")
	}

	var event map[string]interface{}
	if err := json.Unmarshal(payload, &event); err != nil {
		errorf("invalid JSON: %v", err)
	}

	if _, ok := event["source"]; !ok {
		event["source"] = "cli"
	}

	eventJSON, _ := json.Marshal(event)

	base := apiBase(hostVal, portVal)
	body, err := apiPost(base+"/api/v1/events", eventJSON, apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Fprintf(os.Stdout, "%s Event submitted: id=%v status=%v\n",
		green("✓"), resp["event_id"], resp["status"])
}
