package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/config"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultQueueSize      = 256
)

// WebhookSink posts notifications to the configured webhooks from a single
// background worker. Notifications that do not fit in the queue are dropped.
type WebhookSink struct {
	hooks  []config.WebhookConfig
	client *http.Client
	logger *log.Logger

	mu      sync.Mutex
	queue   chan Notification
	closed  bool
	started bool
	done    chan struct{}
}

func NewWebhookSink(hooks []config.WebhookConfig, queueSize int, logger *log.Logger) *WebhookSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = log.Default()
	}
	var enabled []config.WebhookConfig
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		enabled = append(enabled, hook)
	}
	return &WebhookSink{
		hooks:  enabled,
		client: &http.Client{Timeout: defaultWebhookTimeout},
		logger: logger,
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker. It is a no-op after the first call.
func (s *WebhookSink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.run()
}

func (s *WebhookSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- n:
	default:
		s.logger.Printf("notify: queue full, dropping %s for user %s", n.Type, n.UserID)
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered or for ctx to end.
func (s *WebhookSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebhookSink) run() {
	defer close(s.done)
	for n := range s.queue {
		for _, hook := range s.hooks {
			if !matches(hook.Events, n.Type) {
				continue
			}
			if err := s.post(hook, n); err != nil {
				s.logger.Printf("notify: deliver %s to %s failed: %v", n.Type, hook.URL, err)
			}
		}
	}
}

func matches(events []string, t Type) bool {
	if len(events) == 0 {
		return true
	}
	for _, evt := range events {
		if strings.TrimSpace(evt) == string(t) {
			return true
		}
	}
	return false
}

func (s *WebhookSink) post(hook config.WebhookConfig, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timeclock-Event", string(n.Type))
	req.Header.Set("X-Timeclock-Delivery", uuid.NewString())
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Timeclock-Secret", hook.Secret)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
