package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

const (
	headerForwardedFor   = "X-Forwarded-For"
	headerValueSeparator = ","
	// UnknownClientID identifies requests whose origin cannot be determined.
	UnknownClientID = "unknown"
)

// ClientIdentity derives the limiter key for a request: the first forwarded-for entry when
// present, else the peer host, else UnknownClientID. The forwarded header is trusted as-is.
func ClientIdentity(request *http.Request) string {
	if request == nil {
		return UnknownClientID
	}

	if forwardedFor := firstForwardedValue(request.Header.Get(headerForwardedFor)); forwardedFor != "" {
		return forwardedFor
	}

	remoteAddress := strings.TrimSpace(request.RemoteAddr)
	if remoteAddress == "" {
		return UnknownClientID
	}
	host, _, splitErr := net.SplitHostPort(remoteAddress)
	if splitErr != nil {
		return remoteAddress
	}
	if host == "" {
		return UnknownClientID
	}
	return host
}

func firstForwardedValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}
	firstValue, _, _ := strings.Cut(rawValue, headerValueSeparator)
	return strings.TrimSpace(firstValue)
}
