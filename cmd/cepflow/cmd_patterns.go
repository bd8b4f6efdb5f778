package main

// ---------------------------------------------------------------------------
// cmd_patterns.go — list registered patterns
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func cmdPatterns(args []string) {
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
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
	body, err := apiGet(base+"/api/v1/patterns", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if outFmt == FormatJSON {
		printJSON(os.Stdout, body)
		return
	}

	var resp struct {
		Patterns []struct {
			ID           string   `json:"id"`
			Name         string   `json:"name"`
			TypeSequence []string `json:"type_sequence"`
			Window       string   `json:"window"`
			Description  string   `json:"description"`
		} `json:"patterns"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Println(string(body))
		return
	}

	if resp.Total == 0 {
		fmt.Fprintf(os.Stdout, "%s No patterns registered.\n", dim("▸"))
		return
	}

	t := NewTable(os.Stdout, "ID", "NAME", "SEQUENCE", "WINDOW", "DESCRIPTION")
	for _, p := range resp.Patterns {
		t.AddRow(p.ID, p.Name, strings.Join(p.TypeSequence, " → "),
			p.Window, truncate(p.Description, 40))
	}
	t.Render()
	fmt.Fprintf(os.Stdout, "%d pattern(s)\n", resp.Total)
}
