package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// TrafficEndpoint is the traffic logger path relative to the site base URL.
const TrafficEndpoint = "traffic_logger.php"

// Tracker posts analytics events to the traffic logger without blocking the
// caller.
type Tracker struct {
	url       string
	client    *http.Client
	userAgent string
	sessionID string
	device    string
	browser   string
	logger    *slog.Logger

	wg sync.WaitGroup
}

func newTracker(baseURL string, client *http.Client, userAgent, sessionID string, logger *slog.Logger) *Tracker {
	return &Tracker{
		url:       strings.TrimRight(baseURL, "/") + "/" + TrafficEndpoint,
		client:    client,
		userAgent: userAgent,
		sessionID: sessionID,
		device:    ClassifyDevice(userAgent),
		browser:   DetectBrowser(userAgent),
		logger:    logger,
	}
}

// Track sends action for page in the background. Errors are logged only.
func (t *Tracker) Track(ctx context.Context, action, page string) {
	form := url.Values{
		"page":        {page},
		"action":      {action},
		"session_id":  {t.sessionID},
		"device_type": {t.device},
		"browser":     {t.browser},
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.send(context.WithoutCancel(ctx), form); err != nil {
			t.logger.Warn("traffic tracking error", "action", action, "error", err)
		}
	}()
}

// Wait blocks until all in-flight events have been sent.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) send(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("traffic logger responded with status %d", resp.StatusCode)
	}
	return nil
}
