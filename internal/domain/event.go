package domain

import (
	"strings"
	"time"
)

// Action tags emitted by the collector. Scroll thresholds are encoded as
// scroll_<percent>.
const (
	ActionVisit            = "visit"
	ActionPageView         = "page_view"
	ActionFormSubmit       = "form_submit"
	ActionButtonClick      = "button_click"
	ActionBrochureDownload = "brochure_download"
	ActionFormFocus        = "form_focus"
	ActionTimeOnPage       = "time_on_page"
	ActionScrollPrefix     = "scroll_"
)

// Device classes.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

const (
	// Unknown is the placeholder for absent request attributes.
	Unknown = "unknown"
	// DirectReferrer is recorded when no Referer header is present.
	DirectReferrer = "direct"
	// UnknownBrowser is the browser name when no known engine matches.
	UnknownBrowser = "Unknown"
)

// EventRecord is one logged analytics occurrence.
type EventRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	ClientAddr string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referer"`
	Page       string    `json:"page"`
	Action     string    `json:"action"`
	SessionID  string    `json:"session_id"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
}

// IsKnownAction reports whether action is one of the tags the collector emits.
func IsKnownAction(action string) bool {
	switch action {
	case ActionVisit, ActionPageView, ActionFormSubmit, ActionButtonClick,
		ActionBrochureDownload, ActionFormFocus, ActionTimeOnPage:
		return true
	}
	return strings.HasPrefix(action, ActionScrollPrefix)
}

// RecordTime normalizes t to the second-precision UTC instant stored in records.
func RecordTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
