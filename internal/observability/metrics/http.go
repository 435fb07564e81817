// Package metrics exposes request and task counters in the Prometheus
// text exposition format without pulling in the client library.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"machtms/pkg/logger"
)

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func (h *histogram) observe(v float64) {
	if h.counts == nil {
		h.counts = make([]uint64, len(latencyBuckets))
	}
	for i, upper := range latencyBuckets {
		if v <= upper {
			h.counts[i]++
		}
	}
	h.sum += v
	h.total++
}

type collector struct {
	mu       sync.Mutex
	requests map[string]uint64
	errors   map[string]uint64
	latency  map[string]*histogram
	tasks    map[string]uint64
}

var global = &collector{
	requests: make(map[string]uint64),
	errors:   make(map[string]uint64),
	latency:  make(map[string]*histogram),
	tasks:    make(map[string]uint64),
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	key := handler + "|" + method
	global.mu.Lock()
	defer global.mu.Unlock()

	global.requests[key]++
	if status >= 500 {
		global.errors[key]++
	}
	h, ok := global.latency[key]
	if !ok {
		h = &histogram{}
		global.latency[key] = h
	}
	h.observe(duration.Seconds())
}

// ObserveTask records the outcome of one processed background task.
func ObserveTask(kind, outcome string) {
	key := kind + "|" + outcome
	global.mu.Lock()
	defer global.mu.Unlock()
	global.tasks[key]++
}

// Handler renders all collected metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		global.mu.Lock()
		defer global.mu.Unlock()

		var b strings.Builder
		b.WriteString("# HELP machtms_http_requests_total Total HTTP requests served.\n")
		b.WriteString("# TYPE machtms_http_requests_total counter\n")
		for _, key := range sortedKeys(global.requests) {
			handler, method := splitKey(key)
			fmt.Fprintf(&b, "machtms_http_requests_total{handler=%q,method=%q} %d\n", escape(handler), escape(method), global.requests[key])
		}

		b.WriteString("# HELP machtms_http_request_errors_total HTTP requests that returned a 5xx status.\n")
		b.WriteString("# TYPE machtms_http_request_errors_total counter\n")
		for _, key := range sortedKeys(global.errors) {
			handler, method := splitKey(key)
			fmt.Fprintf(&b, "machtms_http_request_errors_total{handler=%q,method=%q} %d\n", escape(handler), escape(method), global.errors[key])
		}

		b.WriteString("# HELP machtms_http_request_duration_seconds Request latency distribution.\n")
		b.WriteString("# TYPE machtms_http_request_duration_seconds histogram\n")
		latencyKeys := make([]string, 0, len(global.latency))
		for key := range global.latency {
			latencyKeys = append(latencyKeys, key)
		}
		sort.Strings(latencyKeys)
		for _, key := range latencyKeys {
			handler, method := splitKey(key)
			h := global.latency[key]
			for i, upper := range latencyBuckets {
				fmt.Fprintf(&b, "machtms_http_request_duration_seconds_bucket{handler=%q,method=%q,le=%q} %d\n",
					escape(handler), escape(method), formatFloat(upper), h.counts[i])
			}
			fmt.Fprintf(&b, "machtms_http_request_duration_seconds_bucket{handler=%q,method=%q,le=\"+Inf\"} %d\n",
				escape(handler), escape(method), h.total)
			fmt.Fprintf(&b, "machtms_http_request_duration_seconds_sum{handler=%q,method=%q} %s\n",
				escape(handler), escape(method), formatFloat(h.sum))
			fmt.Fprintf(&b, "machtms_http_request_duration_seconds_count{handler=%q,method=%q} %d\n",
				escape(handler), escape(method), h.total)
		}

		b.WriteString("# HELP machtms_tasks_processed_total Background tasks processed, by outcome.\n")
		b.WriteString("# TYPE machtms_tasks_processed_total counter\n")
		for _, key := range sortedKeys(global.tasks) {
			kind, outcome := splitKey(key)
			fmt.Fprintf(&b, "machtms_tasks_processed_total{kind=%q,outcome=%q} %d\n", escape(kind), escape(outcome), global.tasks[key])
		}

		_, _ = w.Write([]byte(b.String()))
	})
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func splitKey(key string) (string, string) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// StartServer serves the metrics endpoint on its own listener until the
// context is cancelled.
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
