package relay

import "strings"

// ErrorKind is the classified cause of an upstream failure. Classification
// happens once at the connector boundary; the user-facing code and message are
// derived from the kind, never from the raw error text.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindTimeout
	KindUnexpectedClose
	KindClientProtocol
	KindInactivity
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindUnexpectedClose:
		return "unexpected_close"
	case KindClientProtocol:
		return "client_protocol"
	case KindInactivity:
		return "inactivity"
	default:
		return "generic"
	}
}

// Classify maps a connector-level error onto the taxonomy by matching common
// failure substrings of the upstream API and the websocket transport.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401"):
		return KindUnauthorized
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "403"):
		return KindForbidden
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	default:
		return KindGeneric
	}
}

// clientCode returns the error code forwarded to the client for this kind.
func (k ErrorKind) clientCode() string {
	switch k {
	case KindUnauthorized, KindForbidden, KindGeneric:
		return CodeQwenError
	case KindUnexpectedClose:
		return CodeNotReady
	default:
		return CodeProxyError
	}
}

// clientMessage returns the sanitized, user-safe text for this kind. Raw error
// strings may embed credential fragments and are never forwarded.
func (k ErrorKind) clientMessage() string {
	switch k {
	case KindUnauthorized:
		return "Upstream rejected the configured API credential"
	case KindForbidden:
		return "Upstream denied access to the requested model"
	case KindTimeout:
		return "Upstream connection timed out"
	case KindUnexpectedClose:
		return "Upstream connection closed unexpectedly"
	case KindInactivity:
		return "Session closed after inactivity"
	default:
		return "Upstream service error"
	}
}
