package utils

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	// handler is the endpoint, type the error class
	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_errors_total",
			Help: "Total app errors",
		},
		[]string{"handler", "type"},
	)

	WorkoutsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_workouts_recorded_total",
			Help: "Workouts stored, including offline syncs",
		},
	)

	MetricsRefreshFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_metrics_refresh_failures_total",
			Help: "Fitness snapshot recomputations that failed after the workout was stored",
		},
	)

	// result is hit or miss
	LeaderboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_leaderboard_cache_total",
			Help: "Response cache lookups",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReqCount,
			ReqDuration,
			ErrorCount,
			WorkoutsRecorded,
			MetricsRefreshFailures,
			LeaderboardCache,
		)
	})
}
