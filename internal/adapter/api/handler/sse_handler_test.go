package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTally_Message(t *testing.T) {
	current := tally{}
	for _, r := range []outcomeReport{
		{endpointTraffic, outcomeAccepted},
		{endpointTraffic, outcomeAccepted},
		{endpointTraffic, outcomeRateLimited},
		{endpointCollect, outcomeAccepted},
		{endpointIPCheck, outcomeRateLimited},
		{endpointIPCheck, "error_store"},
	} {
		current.add(r)
	}

	msg := current.message(2*time.Second, 4)

	if msg.Rate != 1.5 {
		t.Errorf("Rate = %v, want 1.5 accepted/s", msg.Rate)
	}
	if msg.Clients != 4 {
		t.Errorf("Clients = %d, want 4", msg.Clients)
	}
	want := map[string]EndpointCounts{
		endpointTraffic: {Accepted: 2, RateLimited: 1},
		endpointCollect: {Accepted: 1},
		endpointIPCheck: {RateLimited: 1, Failed: 1},
	}
	for endpoint, w := range want {
		if got := msg.Endpoints[endpoint]; got != w {
			t.Errorf("%s = %+v, want %+v", endpoint, got, w)
		}
	}
}

func TestTally_ZeroElapsed(t *testing.T) {
	current := tally{}
	current.add(outcomeReport{endpointTraffic, outcomeAccepted})
	if msg := current.message(0, 0); msg.Rate != 0 {
		t.Errorf("Rate = %v, want 0 when no time elapsed", msg.Rate)
	}
}

func TestSSEBroker_StreamsEndpointCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := newSSEBroker(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), 20*time.Millisecond)

	srv := httptest.NewServer(broker)
	defer srv.Close()

	reqCtx, cancelReq := context.WithTimeout(ctx, 5*time.Second)
	defer cancelReq()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() SSEMessage {
		t.Helper()
		for lines.Scan() {
			data, ok := strings.CutPrefix(lines.Text(), "data: ")
			if !ok {
				continue
			}
			var msg SSEMessage
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				t.Fatalf("bad sse payload %q: %v", data, err)
			}
			return msg
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return SSEMessage{}
	}

	// The first message proves the subscription is registered.
	if msg := next(); msg.Clients != 1 {
		t.Errorf("Clients = %d, want 1", msg.Clients)
	}

	broker.ReportOutcome(endpointIPCheck, outcomeAccepted)
	broker.ReportOutcome(endpointIPCheck, outcomeRateLimited)
	broker.ReportOutcome(endpointCollect, outcomeAccepted)

	var seen EndpointCounts
	for seen.Accepted+seen.RateLimited < 2 {
		msg := next()
		c := msg.Endpoints[endpointIPCheck]
		seen.Accepted += c.Accepted
		seen.RateLimited += c.RateLimited
	}
	if seen != (EndpointCounts{Accepted: 1, RateLimited: 1}) {
		t.Errorf("ipcheck counts = %+v, want 1 accepted and 1 rate limited", seen)
	}
}

func TestSSEBroker_ReportOutcomeNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	broker := newSSEBroker(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)

	done := make(chan struct{})
	go func() {
		for i := 0; i < reportQueueSize+10; i++ {
			broker.ReportOutcome(endpointTraffic, outcomeAccepted)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReportOutcome blocked on a full queue")
	}
}
