package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/ledger"
	applog "tally/internal/log"
	"tally/internal/scan"
)

// Scanner turns a receipt image into an expense draft.
type Scanner interface {
	Scan(ctx context.Context, image []byte, mimeType string, categoryNames []string) (*scan.Draft, error)
}

type Server struct {
	http.Server
	ledger      *ledger.Ledger
	scanner     Scanner
	scanTimeout time.Duration
	logger      *applog.Logger
	rateLimiter *rateLimiter

	// Month aggregates are cached per year-month key. Any mutation purges
	// both caches: rollover lets one expense shift another month's numbers.
	summaryCache   *cache.LRU[core.BudgetSummary]
	breakdownCache *cache.LRU[[]core.CategoryTotal]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 10 scans per minute, vision calls are expensive
	client.requests++
	client.lastRequest = now

	return client.requests <= 10
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// scanner may be nil, in which case POST /api/scan degrades to 503.
func NewServer(addr string, led *ledger.Ledger, scanner Scanner, scanTimeout time.Duration, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if scanTimeout <= 0 {
		scanTimeout = 30 * time.Second
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:           led,
		scanner:          scanner,
		scanTimeout:      scanTimeout,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRU[core.BudgetSummary](100, 5*time.Minute),
		breakdownCache:   cache.NewLRU[[]core.CategoryTotal](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/expenses", s.withSecurityHeaders(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.withSecurityHeaders(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.withSecurityHeaders(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withSecurityHeaders(s.handleDeleteExpense))
	mux.HandleFunc("GET /api/expenses/grouped", s.withSecurityHeaders(s.handleGroupedExpenses))

	mux.HandleFunc("GET /api/categories", s.withSecurityHeaders(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withSecurityHeaders(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withSecurityHeaders(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/budget", s.withSecurityHeaders(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budget", s.withSecurityHeaders(s.handleSetBudget))

	mux.HandleFunc("GET /api/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("GET /api/breakdown", s.withSecurityHeaders(s.handleBreakdown))

	mux.HandleFunc("POST /api/scan", s.withSecurityHeaders(s.handleScan))

	return s
}

// startCacheCleanup runs periodic cleanup for both aggregate caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaryCleaned := s.summaryCache.CleanExpired()
			breakdownCleaned := s.breakdownCache.CleanExpired()
			if summaryCleaned > 0 || breakdownCleaned > 0 {
				s.logger.Debug("cache cleanup completed",
					"summary_entries_removed", summaryCleaned,
					"breakdown_entries_removed", breakdownCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting for scans, and
// request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		reqLogger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, reqLogger)
		r = r.WithContext(ctx)

		reqLogger.DebugContext(ctx, "request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit scan requests only, everything else is cheap
		if r.Method == http.MethodPost && r.URL.Path == "/api/scan" && !s.rateLimiter.allow(clientIP) {
			reqLogger.WarnContext(ctx, "rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		reqLogger.InfoContext(ctx, "request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// purgeAggregates drops every cached month aggregate after a mutation.
func (s *Server) purgeAggregates() {
	s.summaryCache.Purge()
	s.breakdownCache.Purge()
}

func aggregateKey(ref core.Date) string {
	return fmt.Sprintf("%d-%d", ref.Year(), ref.Month())
}
