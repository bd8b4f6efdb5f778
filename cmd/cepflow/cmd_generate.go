package main

// ---------------------------------------------------------------------------
// cmd_generate.go — generate and submit randomized sample events
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/cepflow/cepflow/internal/core"
)

var sampleStatuses = []string{"normal", "warning", "critical"}

func sampleEvent(rng *rand.Rand, n int) *core.Event {
	eventType := core.EventType(rng.Intn(5))
	priority := core.Priority(rng.Intn(4))

	event := core.NewEvent(eventType, fmt.Sprintf("sensor_%d", rng.Intn(10)+1), priority)
	event.ID = fmt.Sprintf("EVT_%04d", n)
	event.Payload = map[string]interface{}{
		"temperature": 15 + rng.Float64()*20,
		"humidity":    30 + rng.Float64()*40,
		"status":      sampleStatuses[rng.Intn(len(sampleStatuses))],
	}
	return event
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	count := fs.Int("count", 10, "Number of events to generate")
	intervalStr := fs.String("interval", "0s", "Delay between events")
	seed := fs.Int64("seed", 0, "Random seed (0 uses current time)")
	timeoutStr := fs.String("timeout", "10s", "Request timeout")
	fs.Parse(args)

	hostVal := envHost(*host)
	portVal := envPort(*port)
	apiKey := envAPIKey(*apiKeyFlag)

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}
	interval, err := time.ParseDuration(*intervalStr)
	if err != nil {
		errorf("invalid interval %q: %v", *intervalStr, err)
	}
	if *count <= 0 {
		errorf("count must be positive")
	}

	seedVal := *seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seedVal))

	base := apiBase(hostVal, portVal)
	submitted := 0
	for i := 0; i < *count; i++ {
		event := sampleEvent(rng, i)
		payload, err := json.Marshal(event)
		if err != nil {
			errorf("encoding event: %v", err)
		}
		if _, err := apiPost(base+"/api/v1/events", payload, apiKey, timeout); err != nil {
			errorf("submitting event %d/%d: %v", i+1, *count, err)
		}
		submitted++
		fmt.Fprintf(os.Stdout, "%s %s %s from %s (%s)\n",
			dim("▸"), event.ID, event.Type, event.Source, event.Priority)
		if interval > 0 && i < *count-1 {
			time.Sleep(interval)
		}
	}

	fmt.Fprintf(os.Stdout, "%s Submitted %d event(s)\n", green("✓"), submitted)
}
