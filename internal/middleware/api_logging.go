package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"dcspace-backend/internal/models"
)

// AccessLogger writes one line per API request. Lines are handed to a
// background writer so slow log sinks never block requests.
type AccessLogger struct {
	logChan chan accessEntry
	done    chan struct{}
}

type accessEntry struct {
	method   string
	path     string
	status   int
	duration time.Duration
	caller   string
	ip       string
}

// requestInfo is filled in by inner middleware (Authenticate) so the outer
// logger can report who made the call.
type requestInfo struct {
	caller models.Caller
}

const requestInfoKey contextKey = "request_info"

func NewAccessLogger() *AccessLogger {
	l := &AccessLogger{
		logChan: make(chan accessEntry, 1000),
		done:    make(chan struct{}),
	}
	go l.asyncLogWriter()
	return l
}

func (l *AccessLogger) asyncLogWriter() {
	defer close(l.done)
	for e := range l.logChan {
		log.Printf("[API] %s %s %d %.1fms caller=%s ip=%s",
			e.method, e.path, e.status, float64(e.duration.Microseconds())/1000.0, e.caller, e.ip)
	}
}

// Handler returns the middleware handler
func (l *AccessLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		info := &requestInfo{}
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

		entry := accessEntry{
			method:   r.Method,
			path:     sanitizePath(r.URL.Path),
			status:   wrapped.statusCode,
			duration: time.Since(start),
			caller:   "-",
			ip:       getClientIP(r),
		}
		if info.caller != nil {
			entry.caller = info.caller.Role() + ":" + info.caller.Identity()
		}

		select {
		case l.logChan <- entry:
		default:
			// Channel full, line dropped
		}
	})
}

// Close flushes pending lines.
func (l *AccessLogger) Close() {
	close(l.logChan)
	<-l.done
}

func noteCaller(ctx context.Context, caller models.Caller) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.caller = caller
	}
}

// shouldSkipLogging returns true for paths that shouldn't be logged
func shouldSkipLogging(path string) bool {
	for _, skip := range []string{"/health", "/metrics", "/favicon.ico"} {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}

// sanitizePath truncates very long paths
func sanitizePath(path string) string {
	if len(path) > 500 {
		path = path[:500]
	}
	return path
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies/load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
