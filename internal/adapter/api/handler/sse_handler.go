package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	outcomeAccepted    = "accepted"
	outcomeRateLimited = "rate_limited"

	statsInterval   = time.Second
	reportQueueSize = 1000
)

// EndpointCounts are the outcomes seen on one ingest endpoint during one
// broadcast interval.
type EndpointCounts struct {
	Accepted    int `json:"accepted"`
	RateLimited int `json:"rate_limited"`
	Failed      int `json:"failed"`
}

// SSEMessage is one interval of ingest activity pushed to admin dashboards.
// Rate is accepted requests per second across all endpoints.
type SSEMessage struct {
	Rate      float64                   `json:"rate"`
	Clients   int                       `json:"clients"`
	Endpoints map[string]EndpointCounts `json:"endpoints"`
}

type outcomeReport struct {
	endpoint string
	outcome  string
}

// tally accumulates outcome reports between two broadcasts.
type tally map[string]*EndpointCounts

func (t tally) add(r outcomeReport) {
	c, ok := t[r.endpoint]
	if !ok {
		c = &EndpointCounts{}
		t[r.endpoint] = c
	}
	switch r.outcome {
	case outcomeAccepted:
		c.Accepted++
	case outcomeRateLimited:
		c.RateLimited++
	default:
		c.Failed++
	}
}

func (t tally) message(elapsed time.Duration, clients int) SSEMessage {
	msg := SSEMessage{Clients: clients, Endpoints: make(map[string]EndpointCounts, len(t))}
	accepted := 0
	for endpoint, c := range t {
		msg.Endpoints[endpoint] = *c
		accepted += c.Accepted
	}
	if secs := elapsed.Seconds(); secs > 0 {
		msg.Rate = float64(accepted) / secs
	}
	return msg
}

// SSEBroker fans per-endpoint ingest outcomes out to connected dashboards.
type SSEBroker struct {
	logger   *slog.Logger
	interval time.Duration
	reports  chan outcomeReport
	dropped  atomic.Int64

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewSSEBroker creates a broker that broadcasts once per second until ctx
// is done.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	return newSSEBroker(ctx, logger, statsInterval)
}

func newSSEBroker(ctx context.Context, logger *slog.Logger, interval time.Duration) *SSEBroker {
	b := &SSEBroker{
		logger:   logger.With("component", "sse_broker"),
		interval: interval,
		reports:  make(chan outcomeReport, reportQueueSize),
		clients:  make(map[chan []byte]struct{}),
	}
	go b.run(ctx)
	return b
}

// ReportOutcome records one request outcome for endpoint. It never blocks
// the ingest path; reports beyond the queue are dropped and counted.
func (b *SSEBroker) ReportOutcome(endpoint, outcome string) {
	select {
	case b.reports <- outcomeReport{endpoint: endpoint, outcome: outcome}:
	default:
		b.dropped.Add(1)
	}
}

// ServeHTTP streams one JSON SSEMessage per interval to the caller.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := b.subscribe()
	defer b.unsubscribe(updates)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (b *SSEBroker) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("sse client connected", "clients", n)
	return ch
}

func (b *SSEBroker) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	_, ok := b.clients[ch]
	delete(b.clients, ch)
	n := len(b.clients)
	b.mu.Unlock()
	if ok {
		b.logger.Info("sse client disconnected", "clients", n)
	}
}

// publish hands msg to every subscriber, skipping those still holding the
// previous message.
func (b *SSEBroker) publish(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *SSEBroker) subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	current := tally{}
	since := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.reports:
			current.add(r)
		case now := <-ticker.C:
			if n := b.dropped.Swap(0); n > 0 {
				b.logger.Warn("sse report queue full, dropped outcome reports", "dropped", n)
			}
			data, err := json.Marshal(current.message(now.Sub(since), b.subscribers()))
			if err != nil {
				b.logger.Error("failed to marshal sse message", "error", err)
				continue
			}
			b.publish(data)
			current = tally{}
			since = now
		}
	}
}
