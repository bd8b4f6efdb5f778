package core

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// webhook.go — asynchronous detection delivery to an external webhook.
//
// Detections are queued and POSTed to the configured URL in background
// workers with exponential backoff. Deliveries that exhaust their retries
// land in a bounded dead-letter list for inspection.
// ---------------------------------------------------------------------------

// WebhookConfig controls detection webhook delivery.
type WebhookConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	QueueSize      int           `yaml:"queue_size"`
	Workers        int           `yaml:"workers"`
}

// FailedDelivery is a detection that could not be delivered.
type FailedDelivery struct {
	Record    *DetectionRecord `json:"record"`
	FailedAt  time.Time        `json:"failed_at"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error"`
}

// WebhookNotifier delivers detection records to a webhook URL. It
// implements DetectionSink; Notify never blocks the caller.
type WebhookNotifier struct {
	logger zerolog.Logger
	cfg    WebhookConfig
	queue  chan *DetectionRecord

	dlMu   sync.RWMutex
	failed []*FailedDelivery
	maxDL  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookNotifier starts background delivery workers.
func NewWebhookNotifier(cfg WebhookConfig, logger zerolog.Logger) *WebhookNotifier {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &WebhookNotifier{
		logger: logger.With().Str("component", "webhook").Logger(),
		cfg:    cfg,
		queue:  make(chan *DetectionRecord, cfg.QueueSize),
		maxDL:  500,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}

	n.logger.Info().
		Str("url", cfg.URL).
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Msg("webhook notifier started")
	return n
}

// Notify queues a detection for delivery. A full queue drops the record
// into the dead-letter list rather than blocking ingestion.
func (n *WebhookNotifier) Notify(record *DetectionRecord) {
	select {
	case n.queue <- record:
	default:
		n.logger.Warn().Str("pattern_id", record.PatternID).Msg("webhook queue full, delivery dropped")
		n.addFailed(record, 0, "queue full")
	}
}

// Failed returns up to limit of the most recent failed deliveries.
func (n *WebhookNotifier) Failed(limit int) []*FailedDelivery {
	n.dlMu.RLock()
	defer n.dlMu.RUnlock()

	if limit <= 0 || limit > len(n.failed) {
		limit = len(n.failed)
	}
	out := make([]*FailedDelivery, limit)
	copy(out, n.failed[len(n.failed)-limit:])
	return out
}

// Stop shuts down the workers. Queued records are abandoned.
func (n *WebhookNotifier) Stop() {
	n.cancel()
	n.wg.Wait()
	n.logger.Info().Int("failed", len(n.failed)).Msg("webhook notifier stopped")
}

func (n *WebhookNotifier) worker() {
	defer n.wg.Done()
	client := &http.Client{Timeout: 15 * time.Second}

	for {
		select {
		case <-n.ctx.Done():
			return
		case record := <-n.queue:
			n.deliver(client, record)
		}
	}
}

func (n *WebhookNotifier) deliver(client *http.Client, record *DetectionRecord) {
	payload, err := record.Marshal()
	if err != nil {
		n.addFailed(record, 0, fmt.Sprintf("marshal error: %v", err))
		return
	}

	var lastErr string
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			n.addFailed(record, attempt+1, fmt.Sprintf("request creation error: %v", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "cepflow-webhook/1.0")
		req.Header.Set("X-Cepflow-Pattern", record.PatternID)
		req.Header.Set("X-Cepflow-Attempt", fmt.Sprintf("%d", attempt+1))

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Sprintf("request failed: %v", err)
			if attempt < n.cfg.MaxRetries {
				n.backoff(attempt)
				continue
			}
			break
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.logger.Debug().
				Str("pattern_id", record.PatternID).
				Int("attempts", attempt+1).
				Int("status", resp.StatusCode).
				Msg("detection delivered")
			return
		}

		// 4xx other than 429 will not succeed on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			n.addFailed(record, attempt+1, fmt.Sprintf("client error: HTTP %d", resp.StatusCode))
			return
		}

		lastErr = fmt.Sprintf("server error: HTTP %d", resp.StatusCode)
		if attempt < n.cfg.MaxRetries {
			n.backoff(attempt)
		}
	}

	n.addFailed(record, n.cfg.MaxRetries+1, lastErr)
}

func (n *WebhookNotifier) backoff(attempt int) {
	delay := time.Duration(float64(n.cfg.InitialBackoff) * math.Pow(2, float64(attempt)))
	if delay > n.cfg.MaxBackoff {
		delay = n.cfg.MaxBackoff
	}
	select {
	case <-time.After(delay):
	case <-n.ctx.Done():
	}
}

func (n *WebhookNotifier) addFailed(record *DetectionRecord, attempts int, reason string) {
	n.dlMu.Lock()
	if len(n.failed) >= n.maxDL {
		n.failed = n.failed[n.maxDL/10:]
	}
	n.failed = append(n.failed, &FailedDelivery{
		Record:    record,
		FailedAt:  time.Now().UTC(),
		Attempts:  attempts,
		LastError: reason,
	})
	n.dlMu.Unlock()
	n.logger.Warn().
		Str("pattern_id", record.PatternID).
		Int("attempts", attempts).
		Str("error", reason).
		Msg("detection delivery failed")
}
