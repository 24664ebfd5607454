package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type telemetryRecorder struct {
	response http.ResponseWriter
	status   int
	bytes    int
}

func (r *telemetryRecorder) Header() http.Header {
	return r.response.Header()
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.response.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.response.Write(data)
	r.bytes += n
	return n, err
}

func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.response.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.response.(http.Flusher); ok {
		f.Flush()
	}
}

// ring keeps the last n latency samples of one route.
type ring struct {
	samples []int64
	next    int
}

func (w *ring) add(value int64, size int) {
	if len(w.samples) < size {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.next] = value
	w.next = (w.next + 1) % size
}

// LatencyStats tracks rolling per-route latency percentiles.
type LatencyStats struct {
	mu     sync.Mutex
	size   int
	routes map[string]*ring
}

type RouteLatency struct {
	Route   string `json:"route"`
	Samples int    `json:"samples"`
	P50     int64  `json:"p50Ms"`
	P95     int64  `json:"p95Ms"`
}

func NewLatencyStats(size int) *LatencyStats {
	if size <= 0 {
		size = 200
	}
	return &LatencyStats{size: size, routes: make(map[string]*ring)}
}

func (s *LatencyStats) Record(route string, ms int64) (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	win, ok := s.routes[route]
	if !ok {
		win = &ring{}
		s.routes[route] = win
	}
	win.add(ms, s.size)
	return percentiles(win.samples)
}

// Snapshot returns the current percentiles of every route, sorted by name.
func (s *LatencyStats) Snapshot() []RouteLatency {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RouteLatency, 0, len(s.routes))
	for route, win := range s.routes {
		p50, p95 := percentiles(win.samples)
		out = append(out, RouteLatency{Route: route, Samples: len(win.samples), P50: p50, P95: p95})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func percentiles(samples []int64) (int64, int64) {
	if len(samples) == 0 {
		return 0, 0
	}
	values := append([]int64(nil), samples...)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return percentile(values, 0.5), percentile(values, 0.95)
}

func percentile(values []int64, p float64) int64 {
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func Telemetry(logger *zap.Logger, stats *LatencyStats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{response: w}

			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			routePattern := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				routePattern = rc.RoutePattern()
			}
			metricKey := r.Method + " " + routePattern
			if routePattern == "" {
				metricKey = r.Method + " " + r.URL.Path
			}

			var p50, p95 int64
			if stats != nil {
				p50, p95 = stats.Record(metricKey, duration.Milliseconds())
			}
			if logger == nil {
				return
			}
			logger.Info(
				"http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", routePattern),
				zap.String("requestId", GetRequestID(r.Context())),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
				zap.Bool("error", status >= 500),
			)
		})
	}
}
