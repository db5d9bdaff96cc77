// Package download
package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"erddap-mirror/packages/domain"
	"erddap-mirror/packages/fetch"
	"erddap-mirror/packages/metrics"
)

const (
	// CompositeFormat is the wide tabular container format. Servers reject it
	// for some datasets with a client error; NarrowFormat substitutes for it.
	CompositeFormat = "ncCF"
	NarrowFormat    = "nc"

	SidecarSuffix = "iso19115"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Downloader struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func New(fetcher Fetcher, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{fetcher: fetcher, logger: logger}
}

// Formats attempts each requested format of dataset in order, one outcome per
// format. A failed format never aborts its siblings. A client-error on the
// composite format is transparently downgraded to the narrow format and the
// substitute's outcome is recorded in its place; when both fail the pair is
// reported as one exhausted-fallback failure.
func (d *Downloader) Formats(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor, formats, variables []string, targetDir string, skipExisting bool) []domain.DownloadOutcome {
	outcomes := make([]domain.DownloadOutcome, 0, len(formats))

	for _, format := range formats {
		outcome, err := d.oneFormat(ctx, endpoint, dataset, format, variables, targetDir, skipExisting)

		if err != nil && format == CompositeFormat && fetch.IsClientError(err) {
			d.logger.Info("Composite format rejected, falling back",
				"dataset_id", dataset.ID, "format", format, "fallback", NarrowFormat)
			substitute, subErr := d.oneFormat(ctx, endpoint, dataset, NarrowFormat, variables, targetDir, skipExisting)
			if subErr != nil {
				outcome = domain.Failed(endpoint, dataset.ID, format, domain.FallbackExhausted,
					fmt.Errorf("%s failed (%v); %s fallback failed: %w", format, err, NarrowFormat, subErr))
			} else {
				outcome = substitute
			}
		}

		if outcome.Kind == domain.OutcomeFailed {
			d.logger.Error("Failed to fetch format",
				"dataset_id", dataset.ID, "target", outcome.Target, "error", outcome.Err)
			metrics.DownloadFailures.WithLabelValues(string(outcome.ErrKind)).Inc()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// oneFormat runs the full request logic for a single format: skip-existing
// check, URL composition, fetch, atomic save. The raw fetch error comes back
// alongside the outcome so the caller can apply fallback policy.
func (d *Downloader) oneFormat(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor, format string, variables []string, targetDir string, skipExisting bool) (domain.DownloadOutcome, error) {
	target := filepath.Join(targetDir, dataset.ID+"."+format)
	if skipExisting && exists(target) {
		d.logger.Debug("Skipping existing file", "path", target)
		metrics.FilesSkipped.Inc()
		return domain.Skipped(target + " already exists"), nil
	}

	body, err := d.fetcher.Fetch(ctx, DatasetURL(endpoint, dataset, format, variables))
	if err != nil {
		return domain.Failed(endpoint, dataset.ID, format, domain.DownloadError, err), err
	}

	if err := writeAtomic(target, body); err != nil {
		return domain.Failed(endpoint, dataset.ID, format, domain.DownloadError, err), err
	}
	d.logger.Debug("Saved data", "path", target)
	metrics.FilesSaved.Inc()
	return domain.Saved(target), nil
}

// File downloads one raw file discovered by the directory crawler.
func (d *Downloader) File(ctx context.Context, endpoint, datasetID, fileURL, localPath string, skipExisting bool) domain.DownloadOutcome {
	name := filepath.Base(localPath)
	if skipExisting && exists(localPath) {
		d.logger.Debug("Skipping existing file", "path", localPath)
		metrics.FilesSkipped.Inc()
		return domain.Skipped(localPath + " already exists")
	}

	body, err := d.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		d.logger.Error("Failed to fetch file", "dataset_id", datasetID, "file", name, "error", err)
		metrics.DownloadFailures.WithLabelValues(string(domain.DownloadError)).Inc()
		return domain.Failed(endpoint, datasetID, name, domain.DownloadError, err)
	}

	if err := writeAtomic(localPath, body); err != nil {
		metrics.DownloadFailures.WithLabelValues(string(domain.DownloadError)).Inc()
		return domain.Failed(endpoint, datasetID, name, domain.DownloadError, err)
	}
	d.logger.Debug("Saved data", "path", localPath)
	metrics.FilesSaved.Inc()
	return domain.Saved(localPath)
}

// Sidecar fetches the dataset's metadata document next to its primary
// content. A sidecar failure never invalidates the primary download.
func (d *Downloader) Sidecar(ctx context.Context, endpoint string, dataset domain.DatasetDescriptor, targetDir string, skipExisting bool) domain.DownloadOutcome {
	target := filepath.Join(targetDir, dataset.ID+"."+SidecarSuffix)
	if skipExisting && exists(target) {
		metrics.FilesSkipped.Inc()
		return domain.Skipped(target + " already exists")
	}

	body, err := d.fetcher.Fetch(ctx, dataset.MetadataURL)
	if err != nil {
		d.logger.Error("Failed to fetch metadata sidecar", "dataset_id", dataset.ID, "error", err)
		metrics.DownloadFailures.WithLabelValues(string(domain.DownloadError)).Inc()
		return domain.Failed(endpoint, dataset.ID, SidecarSuffix, domain.DownloadError, err)
	}

	if err := writeAtomic(target, body); err != nil {
		metrics.DownloadFailures.WithLabelValues(string(domain.DownloadError)).Inc()
		return domain.Failed(endpoint, dataset.ID, SidecarSuffix, domain.DownloadError, err)
	}
	metrics.FilesSaved.Inc()
	return domain.Saved(target)
}

// DatasetURL composes the download URL for one dataset/format pair. The
// composition is purely syntactic: endpoint carries no trailing slash, and a
// non-empty variable list becomes a percent-encoded comma-joined query.
func DatasetURL(endpoint string, dataset domain.DatasetDescriptor, format string, variables []string) string {
	segment := "tabledap"
	if dataset.Kind == domain.Gridded {
		segment = "griddap"
	}
	u := fmt.Sprintf("%s/%s/%s.%s", endpoint, segment, dataset.ID, format)
	if len(variables) > 0 {
		u += "?" + url.QueryEscape(strings.Join(variables, ","))
	}
	return u
}

// AllFormatsExist reports whether every requested format of the dataset is
// already present in targetDir.
func AllFormatsExist(targetDir, datasetID string, formats []string) bool {
	for _, format := range formats {
		if !exists(filepath.Join(targetDir, datasetID+"."+format)) {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeAtomic guarantees the target is either absent or complete: the body
// lands in a temp file in the same directory, then renames onto the target.
func writeAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
