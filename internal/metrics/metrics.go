// Package metrics defines Prometheus counters shared by the collection passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobarchive_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobarchive_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// TotalExhibitionsSaved tracks the number of exhibitions persisted.
	TotalExhibitionsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobarchive_exhibitions_saved_total",
		Help: "The total number of exhibition records saved.",
	})
	// TotalImagesDownloaded tracks the number of image files written to disk.
	TotalImagesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobarchive_images_downloaded_total",
		Help: "The total number of images downloaded and recorded.",
	})
	// TotalImageFailures tracks image downloads that failed and were left pending.
	TotalImageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobarchive_image_failures_total",
		Help: "The total number of image downloads that failed.",
	})
)
