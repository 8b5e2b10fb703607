package collector

import (
	"strings"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// Mobile markers are checked before tablet markers, so an iPad is reported
// as mobile.
var (
	mobileMarkers = []string{"mobile", "android", "iphone", "ipad", "ipod", "blackberry", "iemobile", "opera mini"}
	tabletMarkers = []string{"tablet", "ipad"}
)

// browserMarkers is checked in order; Edge and Opera user agents usually
// also carry "Chrome" and are reported as Chrome.
var browserMarkers = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}

// ClassifyDevice maps a user agent to mobile, tablet, desktop, or unknown
// when the user agent is empty.
func ClassifyDevice(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return domain.DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	switch {
	case containsAny(ua, mobileMarkers):
		return domain.DeviceMobile
	case containsAny(ua, tabletMarkers):
		return domain.DeviceTablet
	default:
		return domain.DeviceDesktop
	}
}

// DetectBrowser returns the first browser name found in userAgent.
func DetectBrowser(userAgent string) string {
	for _, name := range browserMarkers {
		if strings.Contains(userAgent, name) {
			return name
		}
	}
	return domain.UnknownBrowser
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
