package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNotConfigured is returned when no https script URL is configured.
var ErrNotConfigured = errors.New("script URL is not configured: set directory.script_url or REMITSHEET_SCRIPT_URL to the deployed https:// script URL")

// ConnectivityMessage is the remediation shown when the script cannot be
// reached.
const ConnectivityMessage = "the vendor directory refused the connection: make sure the script is deployed with the latest code as a new version and that script_url points at it"

// TransportError wraps a failure to reach the script at all.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	if e.Action == actionDownload {
		return fmt.Sprintf("download failed with status: %d", e.Code)
	}
	return fmt.Sprintf("network request failed with status: %d", e.Code)
}

// RemoteError is a failure reported by the script itself.
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// IsConnectivity reports whether err means the script could not be reached:
// network failures, and the browser-style "Failed to fetch"/CORS rejections
// some deployments relay back as text. Timeouts and cancellation are not
// connectivity failures: the script was reachable but slow, or the caller
// gave up.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.As(err, &ne) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Failed to fetch") || strings.Contains(msg, "CORS")
}

const missingRowMarker = "row not found in Column B"

// MissingRowKey reports whether err is the script's "row not found in
// Column B" failure and returns the quoted lookup key from its message.
// The key is empty when the message does not quote one.
func MissingRowKey(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	if !strings.Contains(msg, missingRowMarker) {
		return "", false
	}
	parts := strings.Split(msg, "'")
	if len(parts) < 3 {
		return "", true
	}
	return parts[1], true
}
