// Package domain
package domain

import "time"

type StructureKind string

const (
	Tabular StructureKind = "table"
	Gridded StructureKind = "grid"
)

// DatasetDescriptor is one row of the server catalog. Immutable after the
// resolver builds it; lives for a single run.
type DatasetDescriptor struct {
	ID             string
	Kind           StructureKind
	FileListingURL string
	MetadataURL    string
}

func (d DatasetDescriptor) HasFiles() bool {
	return d.FileListingURL != ""
}

type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeDirectory NodeKind = "directory"
)

// CrawlNode is one entry of a directory index page. Name is relative to the
// listing page the node was found on; the crawler owns the path prefix.
type CrawlNode struct {
	Name string
	Kind NodeKind
}

type OutcomeKind string

const (
	OutcomeSaved   OutcomeKind = "saved"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

type ErrorKind string

const (
	CatalogFetchError  ErrorKind = "catalog_fetch"
	CatalogFormatError ErrorKind = "catalog_format"
	ListingFetchError  ErrorKind = "listing_fetch"
	DownloadError      ErrorKind = "download"
	FallbackExhausted  ErrorKind = "fallback_exhausted"
)

// DownloadOutcome is the tagged result of one download attempt. Exactly one
// variant is meaningful, selected by Kind; values are never mutated after
// creation.
type DownloadOutcome struct {
	Kind OutcomeKind

	// Saved
	LocalPath string

	// Skipped
	Reason string

	// Failed
	Endpoint  string
	DatasetID string
	Target    string
	ErrKind   ErrorKind
	Err       error
}

func Saved(localPath string) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeSaved, LocalPath: localPath}
}

func Skipped(reason string) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(endpoint, datasetID, target string, errKind ErrorKind, err error) DownloadOutcome {
	return DownloadOutcome{
		Kind:      OutcomeFailed,
		Endpoint:  endpoint,
		DatasetID: datasetID,
		Target:    target,
		ErrKind:   errKind,
		Err:       err,
	}
}

// MissedEntry is one persisted row of the missed-downloads report.
type MissedEntry struct {
	Time      time.Time
	Endpoint  string
	DatasetID string
	Target    string
	ErrorDesc string
}
