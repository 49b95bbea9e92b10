package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Cause is the normalized reason a load attempt failed.
type Cause string

const (
	CauseNetwork    Cause = "network"
	CauseCORS       Cause = "cors"
	CauseDecode     Cause = "decode"
	CauseHTTPStatus Cause = "http-status"
	CauseTimeout    Cause = "timeout"
	CauseUnknown    Cause = "unknown"
)

// TransportError is the single representation of a failed load that the
// state machine understands. Rendering surfaces and HTTP clients translate
// their own error shapes into it once, at the boundary.
type TransportError struct {
	Cause      Cause `json:"cause"`
	StatusCode int   `json:"status_code,omitempty"`
}

func (e TransportError) Error() string {
	if e.Cause == CauseHTTPStatus && e.StatusCode != 0 {
		return fmt.Sprintf("media load failed: status %d", e.StatusCode)
	}
	return "media load failed: " + string(e.Cause)
}

// Reason is the short text shown to users. It never includes transport
// details.
func (e TransportError) Reason() string {
	switch e.Cause {
	case CauseNetwork:
		return "Could not reach the media server."
	case CauseCORS:
		return "The media server refused the request."
	case CauseDecode:
		return "The media format is not supported."
	case CauseHTTPStatus:
		return "The media server returned an error."
	case CauseTimeout:
		return "Loading the media took too long."
	}
	return "The media could not be loaded."
}

// ParseTransportError maps the error label reported by a rendering surface.
func ParseTransportError(label string, statusCode int) TransportError {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "network", "net", "offline", "aborted":
		return TransportError{Cause: CauseNetwork}
	case "cors", "forbidden", "security", "permission":
		return TransportError{Cause: CauseCORS, StatusCode: statusCode}
	case "decode", "format", "media_err_decode", "media_err_src_not_supported":
		return TransportError{Cause: CauseDecode}
	case "http", "http-status", "status":
		return TransportError{Cause: CauseHTTPStatus, StatusCode: statusCode}
	case "timeout":
		return TransportError{Cause: CauseTimeout}
	}
	if statusCode >= 400 {
		return TransportError{Cause: CauseHTTPStatus, StatusCode: statusCode}
	}
	return TransportError{Cause: CauseUnknown}
}

// StatusError is returned by HTTP fetchers for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// ClassifyError maps a Go error from an HTTP fetch to a TransportError.
func ClassifyError(err error) TransportError {
	if err == nil {
		return TransportError{Cause: CauseUnknown}
	}
	var te TransportError
	if errors.As(err, &te) {
		return te
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 401 || se.StatusCode == 403 {
			return TransportError{Cause: CauseCORS, StatusCode: se.StatusCode}
		}
		return TransportError{Cause: CauseHTTPStatus, StatusCode: se.StatusCode}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportError{Cause: CauseTimeout}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TransportError{Cause: CauseTimeout}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return TransportError{Cause: CauseNetwork}
	}
	return TransportError{Cause: CauseUnknown}
}
