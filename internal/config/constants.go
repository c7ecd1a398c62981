package config

import "time"

// HTTP server timeouts. WriteTimeout stays zero so long-lived signaling
// connections are not cut off mid-handshake.
const (
	ServerRequestTimeout    = 60 * time.Second
	ServerReadHeaderTimeout = 5 * time.Second
	ServerIdleTimeout       = 120 * time.Second
	ServerShutdownTimeout   = 30 * time.Second
)

// Signaling connection limits
const (
	SignalMessageLimitBytes = 64 << 10
	SignalWriteTimeout      = 10 * time.Second
)

// Request bodies carry base64-encoded payloads, so the HTTP body cap must
// leave room for the ~4/3 encoding overhead above the raw upload cap.
const RequestBodyLimitBytes = 8 << 20
