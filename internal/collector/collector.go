// Package collector is the visitor-side half of the ingestion pipeline: it
// classifies the device, tracks page interactions against the traffic
// logger, and saves contact details through a tiered delivery chain.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// ScrollThresholds are the scroll depths reported once per page load.
var ScrollThresholds = []int{25, 50, 75, 100}

// Config configures a Collector.
type Config struct {
	// BaseURL is the site root serving traffic_logger.php and api/collect-data.
	BaseURL string
	// RemoteStoreURL is the structured remote store; empty disables that tier.
	RemoteStoreURL string
	// SnapshotPath is the on-device snapshot file; empty disables that tier.
	SnapshotPath string
	UserAgent    string
	Location     string
	Timeout      time.Duration
}

// Collector tracks one visitor across the pages of a browser tab.
type Collector struct {
	tracker   *Tracker
	chain     *Chain
	sessionID string
	device    string
	location  string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	contact Contact

	saves sync.WaitGroup
}

// New creates a Collector whose session id lives in sessions. m may be nil.
func New(cfg Config, sessions SessionStore, logger *slog.Logger, m *metrics.CollectorMetrics) *Collector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	logger = logger.With("component", "collector")
	sessionID := SessionID(sessions)

	chain := NewChain(logger, m,
		Tier{Name: "remote_store", Outcome: Delivered, Deliverer: NewRemoteStore(cfg.RemoteStoreURL, client)},
		Tier{Name: "local_endpoint", Outcome: Delivered, Deliverer: NewLocalEndpoint(cfg.BaseURL, client)},
		Tier{Name: "snapshot_cache", Outcome: CachedLocally, Deliverer: NewSnapshotCache(cfg.SnapshotPath)},
	)

	return &Collector{
		tracker:   newTracker(cfg.BaseURL, client, cfg.UserAgent, sessionID, logger),
		chain:     chain,
		sessionID: sessionID,
		device:    ClassifyDevice(cfg.UserAgent),
		location:  cfg.Location,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *Collector) SessionID() string { return c.sessionID }

// Contact returns the contact details collected so far.
func (c *Collector) Contact() Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contact
}

// Open records a page view for path and returns the page handle.
func (c *Collector) Open(ctx context.Context, path string) *Page {
	p := &Page{c: c, path: path, opened: c.now()}
	c.tracker.Track(ctx, domain.ActionPageView, path)
	return p
}

// Wait blocks until every background event and save has finished.
func (c *Collector) Wait() {
	c.tracker.Wait()
	c.saves.Wait()
}

// update merges contact into the visitor state and saves the visitor
// snapshot in the background.
func (c *Collector) update(ctx context.Context, contact Contact) {
	if contact.Empty() {
		return
	}
	c.mu.Lock()
	c.contact.merge(contact)
	current := c.contact
	c.mu.Unlock()

	c.save(ctx, domain.CollectionVisitors, current)
}

func (c *Collector) save(ctx context.Context, collection string, contact Contact) {
	sub := Submission{
		SessionID:      c.sessionID,
		Name:           nonEmpty(contact.Name),
		Phone:          nonEmpty(contact.Phone),
		Email:          nonEmpty(contact.Email),
		CollectionType: collection,
		DeviceType:     c.device,
		Location:       c.location,
		Timestamp:      c.now().UTC(),
	}

	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		c.chain.Save(context.WithoutCancel(ctx), sub)
	}()
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Element is a clicked element.
type Element struct {
	Tag     string
	Classes []string
	Text    string
	Href    string
	OnClick string
}

func (e Element) isButton() bool {
	if strings.EqualFold(e.Tag, "button") {
		return true
	}
	for _, cl := range e.Classes {
		if cl == "btn" {
			return true
		}
	}
	return strings.EqualFold(e.Tag, "a") && (strings.Contains(e.Href, "tel:") || strings.Contains(e.Href, "mailto:"))
}

func (e Element) isBrochure() bool {
	if strings.EqualFold(e.Tag, "a") && strings.Contains(e.Href, "brochure") {
		return true
	}
	return strings.EqualFold(e.Tag, "button") && strings.Contains(e.OnClick, "brochure")
}

// Page tracks interactions during one page load.
type Page struct {
	c      *Collector
	path   string
	opened time.Time

	mu        sync.Mutex
	maxScroll int
	fired     map[int]bool
}

// SubmitForm tracks the submission and saves the extracted contact details
// as a form submission and as a visitor update.
func (p *Page) SubmitForm(ctx context.Context, form Form) Contact {
	p.c.tracker.Track(ctx, domain.ActionFormSubmit, p.path)

	contact := ExtractContact(form)
	p.c.mu.Lock()
	p.c.contact.merge(contact)
	current := p.c.contact
	p.c.mu.Unlock()

	p.c.save(ctx, domain.CollectionFormSubmissions, current)
	p.c.save(ctx, domain.CollectionVisitors, current)
	return contact
}

// FocusField tracks focus on a contact form field.
func (p *Page) FocusField(ctx context.Context, form Form, field FormField) {
	if !form.IsContactForm() {
		return
	}
	name := field.Name
	if name == "" {
		name = "unknown_field"
	}
	p.c.tracker.Track(ctx, domain.ActionFormFocus, name)
}

// BlurField records contact details typed into a field.
func (p *Page) BlurField(ctx context.Context, field FormField) {
	p.c.update(ctx, FieldContact(field))
}

// Click tracks button and brochure clicks and picks up phone numbers shown
// in the clicked element.
func (p *Page) Click(ctx context.Context, el Element) {
	if el.isButton() {
		label := strings.TrimSpace(el.Text)
		if label == "" {
			label = el.Href
		}
		if label == "" {
			label = domain.ActionButtonClick
		}
		p.c.tracker.Track(ctx, domain.ActionButtonClick, label)
	}
	if el.isBrochure() {
		p.c.tracker.Track(ctx, domain.ActionBrochureDownload, p.path)
	}
	if phone, ok := PhoneInText(el.Text); ok {
		p.c.update(ctx, Contact{Phone: phone})
	}
}

// Scroll reports every threshold reached for the first time, in ascending
// order. A page that cannot scroll stays at depth 0.
func (p *Page) Scroll(ctx context.Context, scrollY, scrollHeight, viewportHeight float64) {
	percent := scrollPercent(scrollY, scrollHeight, viewportHeight)

	p.mu.Lock()
	if percent <= p.maxScroll {
		p.mu.Unlock()
		return
	}
	p.maxScroll = percent
	if p.fired == nil {
		p.fired = make(map[int]bool, len(ScrollThresholds))
	}
	var reached []int
	for _, t := range ScrollThresholds {
		if percent >= t && !p.fired[t] {
			p.fired[t] = true
			reached = append(reached, t)
		}
	}
	p.mu.Unlock()

	for _, t := range reached {
		p.c.tracker.Track(ctx, fmt.Sprintf("%s%d", domain.ActionScrollPrefix, t), p.path)
	}
}

// MaxScroll returns the deepest scroll percentage seen on the page.
func (p *Page) MaxScroll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxScroll
}

// Unload reports the time spent on the page.
func (p *Page) Unload(ctx context.Context) {
	seconds := int(math.Round(p.c.now().Sub(p.opened).Seconds()))
	p.c.tracker.Track(ctx, domain.ActionTimeOnPage, fmt.Sprintf("%d seconds", seconds))
}

func scrollPercent(scrollY, scrollHeight, viewportHeight float64) int {
	scrollable := scrollHeight - viewportHeight
	if scrollable <= 0 {
		return 0
	}
	pct := int(math.Round(scrollY / scrollable * 100))
	return max(0, min(pct, 100))
}
