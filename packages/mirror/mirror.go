// Package mirror
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"erddap-mirror/packages/catalog"
	"erddap-mirror/packages/config"
	"erddap-mirror/packages/domain"
	"erddap-mirror/packages/download"
	"erddap-mirror/packages/listing"
	"erddap-mirror/packages/metrics"
	"erddap-mirror/packages/report"
	"erddap-mirror/packages/schema"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Mirror runs one strictly sequential retrieval pass: one in-flight request
// at a time, datasets processed in catalog order.
type Mirror struct {
	cfg        config.Config
	catalog    *catalog.Resolver
	crawler    *listing.Crawler
	downloader *download.Downloader
	fetcher    Fetcher
	logger     *slog.Logger
}

type Summary struct {
	Saved      int
	Skipped    int
	Failed     int
	ReportPath string
}

func New(cfg config.Config, fetcher Fetcher, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		cfg:        cfg,
		catalog:    catalog.New(fetcher, logger),
		crawler:    listing.New(fetcher, logger),
		downloader: download.New(fetcher, logger),
		fetcher:    fetcher,
		logger:     logger,
	}
}

// Run processes every configured endpoint and persists the missed-download
// report. Catalog failures and report I/O failures are fatal; everything else
// is collected and the run continues.
func (m *Mirror) Run(ctx context.Context) (Summary, error) {
	// Run-level preconditions, asserted once before any network I/O.
	if err := m.cfg.Validate(); err != nil {
		return Summary{}, err
	}

	runStart := time.Now()
	reporter := report.New(m.cfg.DownloadsFolder, runStart, m.logger)

	var outcomes []domain.DownloadOutcome
	for _, endpoint := range m.cfg.ErddapURLs {
		endpoint = strings.TrimSuffix(endpoint, "/")
		m.logger.Info("Processing ERDDAP URL", "endpoint", endpoint)

		endpointOutcomes, err := m.processEndpoint(ctx, endpoint)
		outcomes = append(outcomes, endpointOutcomes...)
		if err != nil {
			// Catalog-level failures abort the run; still persist what
			// already failed.
			if writeErr := reporter.Write(outcomes); writeErr != nil {
				m.logger.Error("Failed to write missed report", "error", writeErr)
			}
			return summarize(outcomes, reporter.Path()), err
		}
	}

	if err := reporter.Write(outcomes); err != nil {
		return summarize(outcomes, reporter.Path()), fmt.Errorf("writing missed report: %w", err)
	}

	summary := summarize(outcomes, reporter.Path())
	m.logger.Info("Run finished",
		"saved", summary.Saved, "skipped", summary.Skipped, "failed", summary.Failed,
		"duration", time.Since(runStart).String())
	return summary, nil
}

func (m *Mirror) processEndpoint(ctx context.Context, endpoint string) ([]domain.DownloadOutcome, error) {
	datasets, err := m.catalog.Resolve(ctx, endpoint, m.cfg.DatasetIDs)
	if err != nil {
		return nil, err
	}

	var outcomes []domain.DownloadOutcome
	for _, dataset := range datasets {
		outcomes = append(outcomes, m.processDataset(ctx, endpoint, dataset)...)
		metrics.DatasetsProcessed.Inc()
	}
	return outcomes, nil
}

func (m *Mirror) processDataset(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor) []domain.DownloadOutcome {
	downloadDir := filepath.Join(m.cfg.DownloadsFolder, endpointHost(endpoint), dataset.ID)
	if err := os.MkdirAll(downloadDir, 0750); err != nil {
		m.logger.Error("Failed to create download directory", "path", downloadDir, "error", err)
		return []domain.DownloadOutcome{
			domain.Failed(endpoint, dataset.ID, "all", domain.DownloadError, err),
		}
	}

	if m.cfg.SkipExisting && download.AllFormatsExist(downloadDir, dataset.ID, m.cfg.Formats) {
		m.logger.Debug("All formats already exist, skipping dataset", "dataset_id", dataset.ID)
		skipped := make([]domain.DownloadOutcome, 0, len(m.cfg.Formats))
		for range m.cfg.Formats {
			skipped = append(skipped, domain.Skipped(dataset.ID+" already complete"))
		}
		metrics.FilesSkipped.Add(float64(len(m.cfg.Formats)))
		return skipped
	}

	var outcomes []domain.DownloadOutcome
	ran := false

	switch {
	case dataset.Kind == domain.Tabular && m.cfg.TableDatasets:
		ran = true
		outcomes = m.downloader.Formats(ctx, endpoint, dataset, m.cfg.Formats, nil, downloadDir, m.cfg.SkipExisting)

	case dataset.Kind != domain.Tabular && dataset.HasFiles() && m.cfg.GridWithFiles:
		ran = true
		outcomes = m.crawlFiles(ctx, endpoint, dataset, downloadDir)

	case dataset.Kind != domain.Tabular && !dataset.HasFiles() && m.cfg.GridByFormats:
		ran = true
		outcomes = m.gridByFormats(ctx, endpoint, dataset, downloadDir)
	}

	if ran && dataset.MetadataURL != "" && countSaved(outcomes) > 0 {
		outcomes = append(outcomes, m.downloader.Sidecar(ctx, endpoint, dataset, downloadDir, m.cfg.SkipExisting))
	}
	return outcomes
}

// crawlFiles mirrors the dataset's raw file tree. A listing page that cannot
// be fetched fails its whole subtree as one aggregated entry; sibling
// subtrees keep going.
func (m *Mirror) crawlFiles(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor, downloadDir string) []domain.DownloadOutcome {
	var outcomes []domain.DownloadOutcome
	m.crawler.Walk(ctx, dataset.FileListingURL, downloadDir,
		func(fileURL, localPath string) {
			outcomes = append(outcomes, m.downloader.File(ctx, endpoint, dataset.ID, fileURL, localPath, m.cfg.SkipExisting))
		},
		func(listingURL string, err error) {
			metrics.DownloadFailures.WithLabelValues(string(domain.ListingFetchError)).Inc()
			outcomes = append(outcomes, domain.Failed(endpoint, dataset.ID, "all", domain.ListingFetchError,
				fmt.Errorf("listing %s: %w", listingURL, err)))
		})
	return outcomes
}

// gridByFormats downloads format renditions of a gridded dataset without a
// file listing, scoping each request with the variables declared in the
// dataset's schema document.
func (m *Mirror) gridByFormats(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor, downloadDir string) []domain.DownloadOutcome {
	var outcomes []domain.DownloadOutcome

	variables, err := m.fetchVariables(ctx, endpoint, dataset.ID)
	if err != nil {
		// Scoping is lost but the downloads themselves may still work.
		m.logger.Error("Failed to fetch schema document", "dataset_id", dataset.ID, "error", err)
		metrics.DownloadFailures.WithLabelValues(string(domain.DownloadError)).Inc()
		outcomes = append(outcomes, domain.Failed(endpoint, dataset.ID, "dds", domain.DownloadError, err))
	}

	return append(outcomes, m.downloader.Formats(ctx, endpoint, dataset, m.cfg.Formats, variables, downloadDir, m.cfg.SkipExisting)...)
}

func (m *Mirror) fetchVariables(ctx context.Context, endpoint, datasetID string) ([]string, error) {
	body, err := m.fetcher.Fetch(ctx, endpoint+"/tabledap/"+datasetID+".dds")
	if err != nil {
		return nil, err
	}
	return schema.ExtractVariables(string(body)), nil
}

func countSaved(outcomes []domain.DownloadOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Kind == domain.OutcomeSaved {
			n++
		}
	}
	return n
}

func summarize(outcomes []domain.DownloadOutcome, reportPath string) Summary {
	s := Summary{ReportPath: reportPath}
	for _, o := range outcomes {
		switch o.Kind {
		case domain.OutcomeSaved:
			s.Saved++
		case domain.OutcomeSkipped:
			s.Skipped++
		case domain.OutcomeFailed:
			s.Failed++
		}
	}
	return s
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
