package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/pkg/fsutil"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

// SlidingWindow is an in-memory domain.RateLimiter. Each key keeps the unix
// seconds of its admitted requests inside the trailing window.
type SlidingWindow struct {
	limit  int
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	windows map[string][]int64
}

// NewSlidingWindow creates a limiter admitting at most limit requests per window.
func NewSlidingWindow(limit int, window time.Duration, logger *slog.Logger) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window < time.Second {
		window = DefaultWindow
	}
	return &SlidingWindow{
		limit:   limit,
		window:  window,
		logger:  logger.With("component", "rate_limiter"),
		windows: make(map[string][]int64),
	}
}

// Admit purges expired timestamps for key, then either records now and
// allows, or rejects with a retry-after of one full window.
func (s *SlidingWindow) Admit(_ context.Context, key string, now time.Time) (domain.Decision, error) {
	sec := now.Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.purge(s.windows[key], sec)
	if len(live) >= s.limit {
		s.windows[key] = live
		return domain.Decision{
			Allowed:    false,
			Limit:      s.limit,
			Remaining:  0,
			RetryAfter: s.window,
		}, nil
	}

	live = append(live, sec)
	s.windows[key] = live
	return domain.Decision{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(live),
	}, nil
}

// purge keeps timestamps strictly newer than now-window. Caller holds mu.
func (s *SlidingWindow) purge(timestamps []int64, now int64) []int64 {
	cutoff := now - int64(s.window/time.Second)
	i := 0
	for i < len(timestamps) && timestamps[i] <= cutoff {
		i++
	}
	if i == 0 {
		return timestamps
	}
	return append([]int64(nil), timestamps[i:]...)
}

// Sweep purges every window at now and drops the empty ones.
func (s *SlidingWindow) Sweep(now time.Time) int {
	sec := now.Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, ts := range s.windows {
		live := s.purge(ts, sec)
		if len(live) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = live
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *SlidingWindow) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Sweep(t); n > 0 {
				s.logger.Debug("swept idle rate limit windows", "removed", n)
			}
		}
	}
}

// Len returns the number of tracked keys.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Snapshot returns a copy of every window ordered by key.
func (s *SlidingWindow) Snapshot() []domain.WindowSnapshot {
	s.mu.Lock()
	out := make([]domain.WindowSnapshot, 0, len(s.windows))
	for key, ts := range s.windows {
		out = append(out, domain.WindowSnapshot{Key: key, Timestamps: append([]int64(nil), ts...)})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Restore replaces the current windows with state, dropping empty entries.
func (s *SlidingWindow) Restore(state map[string][]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows = make(map[string][]int64, len(state))
	for key, ts := range state {
		if len(ts) == 0 {
			continue
		}
		sorted := append([]int64(nil), ts...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.windows[key] = sorted
	}
}

// LoadState restores windows from a JSON object of key to unix seconds.
// A missing file is not an error.
func (s *SlidingWindow) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("rate limit state not found, starting empty", "path", path)
			return nil
		}
		return fmt.Errorf("error reading rate limit state: %w", err)
	}

	var state map[string][]int64
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("error parsing rate limit state: %w", err)
	}
	s.Restore(state)
	s.logger.Info("loaded rate limit state", "path", path, "keys", len(state))
	return nil
}

// SaveState atomically writes the live windows to path.
func (s *SlidingWindow) SaveState(path string) error {
	s.mu.Lock()
	state := make(map[string][]int64, len(s.windows))
	for key, ts := range s.windows {
		state[key] = append([]int64(nil), ts...)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling rate limit state: %w", err)
	}
	if err := fsutil.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing rate limit state: %w", err)
	}
	return nil
}

// Set is a group of limiters keyed by endpoint name.
type Set map[string]*SlidingWindow

// Snapshot returns the windows of every limiter with keys of the form
// "<endpoint>:<client>".
func (s Set) Snapshot() []domain.WindowSnapshot {
	var out []domain.WindowSnapshot
	for name, l := range s {
		for _, w := range l.Snapshot() {
			w.Key = name + ":" + w.Key
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Run starts the janitor of every limiter and blocks until ctx is done.
func (s Set) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, l := range s {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(ctx, interval)
		}()
	}
	wg.Wait()
}
