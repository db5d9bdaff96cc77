// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erddap_mirror_fetches_total",
			Help: "Total number of HTTP fetches, labeled by result (ok, status code, transport_error, truncated_body).",
		},
		[]string{"result"},
	)
	FetchedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "erddap_mirror_fetched_bytes_total",
			Help: "Total number of response body bytes fetched.",
		},
	)
	FilesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "erddap_mirror_files_saved_total",
			Help: "Total number of files written to the local mirror.",
		},
	)
	FilesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "erddap_mirror_files_skipped_total",
			Help: "Total number of downloads skipped because the target already existed.",
		},
	)
	DownloadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erddap_mirror_download_failures_total",
			Help: "Total number of failed downloads, labeled by error kind.",
		},
		[]string{"kind"},
	)
	DatasetsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "erddap_mirror_datasets_processed_total",
			Help: "Total number of catalog datasets processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchesTotal)
	prometheus.MustRegister(FetchedBytes)
	prometheus.MustRegister(FilesSaved)
	prometheus.MustRegister(FilesSkipped)
	prometheus.MustRegister(DownloadFailures)
	prometheus.MustRegister(DatasetsProcessed)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
