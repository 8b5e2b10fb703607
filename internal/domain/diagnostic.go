package domain

import "time"

// RequestInfo is the request metadata echoed by the identity check.
type RequestInfo struct {
	ClientAddr  string `json:"ip"`
	Timestamp   string `json:"timestamp"`
	UserAgent   string `json:"user_agent"`
	Referrer    string `json:"referer"`
	Language    string `json:"language"`
	Method      string `json:"method"`
	Protocol    string `json:"protocol"`
	Host        string `json:"host"`
	RequestURI  string `json:"request_uri"`
	ForwardedIP string `json:"forwarded_ip,omitempty"`
	RealIP      string `json:"real_ip,omitempty"`
}

// DiagnosticEntry is the record kept for every accepted identity check.
type DiagnosticEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ClientAddr string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referer"`
	Endpoint   string    `json:"endpoint"`
}
