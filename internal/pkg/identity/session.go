// Package identity assigns advisory per-session identifiers.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 9

// EnsureSessionID returns clientProvided unchanged when it is non-empty and a
// freshly generated id otherwise. The format of client ids is not validated.
func EnsureSessionID(clientProvided string) string {
	if clientProvided != "" {
		return clientProvided
	}
	return NewSessionID()
}

// NewSessionID returns "session_<unix millis>_<random suffix>". Ids are
// practically unique but not unforgeable.
func NewSessionID() string {
	return newSessionIDAt(time.Now())
}

func newSessionIDAt(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}
