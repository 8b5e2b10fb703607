package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/pkg/fsutil"
)

// ErrTierDisabled is returned by a tier that is not configured.
var ErrTierDisabled = errors.New("delivery tier disabled")

// Outcome is the terminal result of a save.
type Outcome int

const (
	Dropped Outcome = iota
	Delivered
	CachedLocally
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case CachedLocally:
		return "cached_locally"
	default:
		return "dropped"
	}
}

// Submission is the minimal contact payload sent by the collector.
type Submission struct {
	SessionID      string    `json:"sessionId"`
	Name           *string   `json:"name"`
	Phone          *string   `json:"phone"`
	Email          *string   `json:"email"`
	CollectionType string    `json:"collectionType"`
	DeviceType     string    `json:"deviceType,omitempty"`
	Location       string    `json:"location,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Deliverer sends a submission to one destination.
type Deliverer interface {
	Deliver(ctx context.Context, sub Submission) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, sub Submission) error

func (f DelivererFunc) Deliver(ctx context.Context, sub Submission) error { return f(ctx, sub) }

// Tier is one step of a delivery chain. Outcome is reported when the tier
// succeeds.
type Tier struct {
	Name    string
	Outcome Outcome
	Deliverer
}

// Chain tries its tiers in order until one succeeds.
type Chain struct {
	tiers   []Tier
	logger  *slog.Logger
	metrics *metrics.CollectorMetrics
}

// NewChain creates a Chain. m may be nil.
func NewChain(logger *slog.Logger, m *metrics.CollectorMetrics, tiers ...Tier) *Chain {
	return &Chain{tiers: tiers, logger: logger, metrics: m}
}

// Save delivers sub through the first tier that accepts it. Failures and
// panics in a tier fall through to the next one; Save never fails.
func (c *Chain) Save(ctx context.Context, sub Submission) Outcome {
	outcome := Dropped
	for _, t := range c.tiers {
		err := c.try(ctx, t, sub)
		if err == nil {
			outcome = t.Outcome
			break
		}
		if errors.Is(err, ErrTierDisabled) {
			continue
		}
		c.logger.Warn("delivery tier failed", "tier", t.Name, "error", err, "session_id", sub.SessionID)
	}

	if outcome == Dropped {
		c.logger.Error("all delivery tiers failed, dropping submission", "session_id", sub.SessionID, "collection", sub.CollectionType)
	}
	if c.metrics != nil {
		c.metrics.Deliveries.WithLabelValues(outcome.String()).Inc()
	}
	return outcome
}

func (c *Chain) try(ctx context.Context, t Tier, sub Submission) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %s panicked: %v", t.Name, r)
		}
	}()
	return t.Deliver(ctx, sub)
}

// RemoteStore posts submissions as JSON documents to
// <baseURL>/<collection>. An empty baseURL disables it.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

func NewRemoteStore(baseURL string, client *http.Client) *RemoteStore {
	return &RemoteStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *RemoteStore) Deliver(ctx context.Context, sub Submission) error {
	if s.baseURL == "" {
		return ErrTierDisabled
	}
	return postJSON(ctx, s.client, s.baseURL+"/"+sub.CollectionType, sub)
}

// LocalEndpoint posts submissions to the ingestion server's contact
// collector.
type LocalEndpoint struct {
	url    string
	client *http.Client
}

// NewLocalEndpoint targets <baseURL>/api/collect-data.
func NewLocalEndpoint(baseURL string, client *http.Client) *LocalEndpoint {
	return &LocalEndpoint{url: strings.TrimRight(baseURL, "/") + "/api/collect-data", client: client}
}

func (e *LocalEndpoint) Deliver(ctx context.Context, sub Submission) error {
	return postJSON(ctx, e.client, e.url, sub)
}

// SnapshotCache keeps the latest submission in a file on the device. An
// empty path disables it.
type SnapshotCache struct {
	path string
}

func NewSnapshotCache(path string) *SnapshotCache {
	return &SnapshotCache{path: path}
}

func (s *SnapshotCache) Deliver(_ context.Context, sub Submission) error {
	if s.path == "" {
		return ErrTierDisabled
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := fsutil.AtomicWriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server responded with status %d", resp.StatusCode)
	}
	return nil
}
