package pii

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks contact fields (phone, email, ...) in stored records and log lines.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of fields to redact.
// Field names are matched case-insensitively; blanks are ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

func (r *Redactor) sensitive(key string) bool {
	_, ok := r.fieldsToRedact[strings.ToLower(key)]
	return ok
}

// Redact returns a copy of a JSON object record with the configured top-level
// fields replaced by RedactedPlaceholder. Null values are left as they are.
// The bool reports whether anything was masked.
func (r *Redactor) Redact(record json.RawMessage) (json.RawMessage, bool, error) {
	if len(r.fieldsToRedact) == 0 || len(record) == 0 {
		return record, false, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(record, &fields); err != nil {
		r.logger.Warn("failed to unmarshal record for PII redaction", "error", err)
		return nil, false, err
	}

	redacted := false
	for key, value := range fields {
		if value == nil || !r.sensitive(key) {
			continue
		}
		fields[key] = RedactedPlaceholder
		redacted = true
	}

	if !redacted {
		return record, false, nil
	}

	out, err := json.Marshal(fields)
	if err != nil {
		r.logger.Error("failed to marshal record after PII redaction", "error", err)
		return nil, false, err
	}
	return out, true, nil
}

// ReplaceAttr masks sensitive attributes; use it as slog.HandlerOptions.ReplaceAttr.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.sensitive(a.Key) && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
		return slog.String(a.Key, RedactedPlaceholder)
	}
	return a
}
