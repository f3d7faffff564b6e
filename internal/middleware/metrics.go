package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal          uint64
	RequestsInProgress     uint64
	RequestsSuccess        uint64
	RequestsFailed         uint64
	SubmissionsTotal       uint64
	SubmissionsRejected    uint64
	SubmissionsRateLimited uint64
	SubmissionsTimedOut    uint64
	SubmissionsFailed      uint64
	StartTime              time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementSubmission tracks one pipeline run by its terminal state.
func IncrementSubmission(status string) {
	atomic.AddUint64(&globalMetrics.SubmissionsTotal, 1)
	switch status {
	case "rejected":
		atomic.AddUint64(&globalMetrics.SubmissionsRejected, 1)
	case "rate_limited":
		atomic.AddUint64(&globalMetrics.SubmissionsRateLimited, 1)
	case "timed_out":
		atomic.AddUint64(&globalMetrics.SubmissionsTimedOut, 1)
	case "failed":
		atomic.AddUint64(&globalMetrics.SubmissionsFailed, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":           atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":     atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":         atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":          atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"submissions_total":        atomic.LoadUint64(&globalMetrics.SubmissionsTotal),
		"submissions_rejected":     atomic.LoadUint64(&globalMetrics.SubmissionsRejected),
		"submissions_rate_limited": atomic.LoadUint64(&globalMetrics.SubmissionsRateLimited),
		"submissions_timed_out":    atomic.LoadUint64(&globalMetrics.SubmissionsTimedOut),
		"submissions_failed":       atomic.LoadUint64(&globalMetrics.SubmissionsFailed),
		"uptime_seconds":           time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
