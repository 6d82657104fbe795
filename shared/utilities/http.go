package utilities

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type deviceInfoKey struct{}

// WithDeviceInfo returns a context carrying the caller's device info.
func WithDeviceInfo(ctx context.Context, info string) context.Context {
	return context.WithValue(ctx, deviceInfoKey{}, info)
}

// DeviceInfoFromContext extracts device info placed by WithDeviceInfo.
func DeviceInfoFromContext(ctx context.Context) (string, bool) {
	info, ok := ctx.Value(deviceInfoKey{}).(string)
	return info, ok && info != ""
}

// DeviceInfoFromRequest builds a device descriptor from the request's
// device id, user agent and client IP. A missing device id is replaced
// with a generated one so every session row still carries a stable shape.
func DeviceInfoFromRequest(r *http.Request) string {
	deviceID := r.Header.Get("X-Device-ID")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	return fmt.Sprintf("%s; %s; %s", deviceID, r.UserAgent(), ClientIP(r))
}

// ClientIP resolves the originating client address, preferring forwarding
// headers set by the edge proxy over the socket address.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
