package log

import (
	"sync"
	"time"
)

const httpLogCapacity = 1000

// HTTP request log is kept apart from the main logger so the REST server can
// report recent traffic without scraping log output
var httpLogBuffer *HTTPLogBuffer
var httpLogBufferOnce sync.Once

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	Size       int           `json:"size"`
	RemoteAddr string        `json:"remote_addr"`
	UserAgent  string        `json:"user_agent"`
}

// HTTPLogBuffer is a fixed-size ring of recent requests
type HTTPLogBuffer struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewHTTPLogBuffer creates a ring holding up to capacity entries
func NewHTTPLogBuffer(capacity int) *HTTPLogBuffer {
	return &HTTPLogBuffer{entries: make([]HTTPLogEntry, capacity)}
}

// Add appends an entry, evicting the oldest when full
func (b *HTTPLogBuffer) Add(e HTTPLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns up to n entries, newest first
func (b *HTTPLogBuffer) Recent(n int) []HTTPLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]HTTPLogEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// GetHTTPLogBuffer returns the HTTP log buffer instance, creating it if necessary
func GetHTTPLogBuffer() *HTTPLogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewHTTPLogBuffer(httpLogCapacity)
	})
	return httpLogBuffer
}

// LogHTTPRequest records a completed request in the HTTP log buffer and
// writes it to the main logger at debug level
func LogHTTPRequest(method, path string, status int, duration time.Duration, size int, remoteAddr, userAgent string) {
	GetHTTPLogBuffer().Add(HTTPLogEntry{
		Timestamp:  time.Now(),
		Method:     method,
		Path:       path,
		Status:     status,
		Duration:   duration,
		Size:       size,
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
	})

	GetSugaredLogger().Debugw("http request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"size", size,
		"remote_addr", remoteAddr)
}
