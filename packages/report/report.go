// Package report
package report

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"erddap-mirror/packages/domain"
)

var header = []string{"time", "erddap_url", "datasetID", "missed", "error"}

// Writer persists failed outcomes to an append-only CSV shared across runs.
// Creation is deferred: a run with zero failures writes no file, and the
// header only goes in when the file is first created.
type Writer struct {
	downloadsFolder string
	runStart        time.Time
	logger          *slog.Logger
}

func New(downloadsFolder string, runStart time.Time, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{downloadsFolder: downloadsFolder, runStart: runStart, logger: logger}
}

func (w *Writer) Path() string {
	name := "missed_formats-" + w.runStart.Format("2006-01-02_15:04:05") + ".csv"
	return filepath.Join(w.downloadsFolder, name)
}

// Write appends one row per failed outcome. Saved and skipped outcomes are
// not persisted. An I/O error here is fatal for the run; the caller decides
// how loudly.
func (w *Writer) Write(outcomes []domain.DownloadOutcome) error {
	entries := Entries(outcomes, w.runStart)
	if len(entries) == 0 {
		return nil
	}

	path := w.Path()
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if isNew {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	for _, e := range entries {
		row := []string{e.Time.Format(time.RFC3339), e.Endpoint, e.DatasetID, e.Target, e.ErrorDesc}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	w.logger.Info("Some content was missed. Details have been written to report",
		"path", path, "missed", len(entries))
	return nil
}

// Entries converts the failed outcomes of a run into persistable rows,
// stamping each with the run start time.
func Entries(outcomes []domain.DownloadOutcome, runStart time.Time) []domain.MissedEntry {
	var entries []domain.MissedEntry
	for _, o := range outcomes {
		if o.Kind != domain.OutcomeFailed {
			continue
		}
		desc := ""
		if o.Err != nil {
			desc = o.Err.Error()
		}
		entries = append(entries, domain.MissedEntry{
			Time:      runStart,
			Endpoint:  o.Endpoint,
			DatasetID: o.DatasetID,
			Target:    o.Target,
			ErrorDesc: desc,
		})
	}
	return entries
}
