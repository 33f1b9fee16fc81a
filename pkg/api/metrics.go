package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpTotalRequests is the total number of http requests.
	HttpTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kennel_http_total_requests",
			Help: "Total number of http requests",
		},
		[]string{"path", "method", "status_code"},
	)

	// HttpRequestDuration is the duration of the http request.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "kennel_http_request_duration",
			Help: "Duration of the http request",
		},
		[]string{"path", "method", "status_code"},
	)

	// HttpRateLimited is the number of requests refused by the rate limiter.
	HttpRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kennel_http_rate_limited_total",
			Help: "Number of http requests refused by the rate limiter",
		},
	)
)
