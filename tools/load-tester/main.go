package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/collector"
	"github.com/V4T54L/visitor-ingest/internal/pkg/logger"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Tablet; rv:109.0) Gecko/115.0 Firefox/115.0",
}

var pages = []string{"/", "/amenities.html", "/floor-plans.html", "/location.html", "/contact.html"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Site base URL serving traffic_logger.php and api/collect-data")
	concurrency := flag.Int("c", 10, "Number of concurrent visitors")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 50, "Visits started per second")
	leadRatio := flag.Float64("leads", 0.2, "Fraction of visits that submit the contact form")
	logLevel := flag.String("log-level", "error", "Collector log level")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)
	log.Printf("Note: the ingest server limits each client address; expect rejections unless limits are raised")

	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorMetrics(reg)
	collectorLogger := logger.New(*logLevel)

	var wg sync.WaitGroup
	var visits, leads atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				submitted := visit(ctx, *baseURL, collectorLogger, m, *leadRatio)
				visits.Add(1)
				if submitted {
					leads.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	total := visits.Load()
	log.Println("Load test finished.")
	log.Printf("Visits: %d (%.2f/s)", total, float64(total)/duration.Seconds())
	log.Printf("Contact forms submitted: %d", leads.Load())
	for outcome, n := range deliveryOutcomes(reg) {
		log.Printf("Contact saves %s: %.0f", outcome, n)
	}
}

// visit simulates one page load and reports whether a contact form was
// submitted.
func visit(ctx context.Context, baseURL string, logger *slog.Logger, m *metrics.CollectorMetrics, leadRatio float64) bool {
	c := collector.New(collector.Config{
		BaseURL:   baseURL,
		UserAgent: userAgents[rand.IntN(len(userAgents))],
		Timeout:   5 * time.Second,
	}, collector.NewMemorySessionStore(), logger, m)
	defer c.Wait()

	page := c.Open(ctx, pages[rand.IntN(len(pages))])
	for y := 0.0; y <= 3000; y += float64(500 + rand.IntN(500)) {
		page.Scroll(ctx, y, 4000, 1000)
	}
	page.Click(ctx, collector.Element{Tag: "button", Text: "Enquire Now"})
	if rand.Float64() < 0.3 {
		page.Click(ctx, collector.Element{Tag: "a", Href: "/assets/brochure.pdf"})
	}

	submitted := rand.Float64() < leadRatio
	if submitted {
		form := collector.Form{Name: "form1", Fields: []collector.FormField{
			{Name: "name", Value: "Load Test " + uuid.NewString()[:8]},
			{Name: "phone", Type: "tel", Value: fmt.Sprintf("+91 9%09d", rand.IntN(1_000_000_000))},
			{Name: "email", Type: "email", Value: uuid.NewString()[:8] + "@example.com"},
		}}
		page.FocusField(ctx, form, form.Fields[0])
		page.SubmitForm(ctx, form)
	}

	page.Unload(ctx)
	return submitted
}

func deliveryOutcomes(reg *prometheus.Registry) map[string]float64 {
	out := make(map[string]float64)
	families, err := reg.Gather()
	if err != nil {
		log.Printf("failed to gather collector metrics: %v", err)
		return out
	}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" {
					out[l.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}
