package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mssola/useragent"

	"rollcall/pkg/requestcontext"
)

const maxDeviceLabel = 64

// RequestIDHeader echoes the request id back to the client.
const RequestIDHeader = "X-Request-Id"

// RequestID copies chi's request id onto the request context and the response
// headers. Apply it after middleware.RequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

// ClientMetadata stores the client IP and User-Agent on the request context.
// Apply it after chi's RealIP so proxied addresses are already resolved.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		ctx = requestcontext.WithDevice(ctx, DeviceLabel(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the first X-Forwarded-For hop, X-Real-IP, or the
// host part of RemoteAddr.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// DeviceLabel summarizes a User-Agent as "<browser> <major> on <os>", marking
// handsets and bots. Audit events carry it so a check-in can be traced to
// the kiosk or phone that made it.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot " + name
	}
	major, _, _ := strings.Cut(version, ".")

	label := strings.TrimSpace(name + " " + major)
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	if strings.TrimSpace(label) == "" {
		label = truncate(userAgent, maxDeviceLabel)
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
