package wire

import "fmt"

// MalformedHeaderError reports a header that cannot be decoded: an hlen
// outside the four valid values, or a buffer too short for the hlen/len it
// declares. Mirrors the teacher's RejectError: a small named error type for
// the one case callers plausibly want to distinguish from the generic
// sentinel errors below.
type MalformedHeaderError struct {
	reason string
}

func (e *MalformedHeaderError) Error() string { return "wire: malformed header: " + e.reason }

func newMalformed(format string, args ...any) *MalformedHeaderError {
	return &MalformedHeaderError{reason: fmt.Sprintf(format, args...)}
}
