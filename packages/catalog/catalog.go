// Package catalog
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"

	"erddap-mirror/packages/domain"
)

// catalogQuery selects the catalog columns by name; commas are percent-encoded
// the way ERDDAP expects them.
const catalogQuery = "/tabledap/allDatasets.csv?datasetID%2CdataStructure%2Cfiles%2Ciso19115"

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError means the catalog endpoint was unreachable or answered with a
// non-success status. It is fatal for the endpoint being processed.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching catalog of %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FormatError means the catalog answered but an expected column is missing.
type FormatError struct {
	Endpoint string
	Column   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("catalog of %s is missing column %q", e.Endpoint, e.Column)
}

type Resolver struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func New(fetcher Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

// Resolve fetches the allDatasets catalog of endpoint and returns one
// descriptor per real dataset row, in catalog order. When explicitIDs is
// non-empty the result is filtered to those ids, still in catalog order.
func (r *Resolver) Resolve(ctx context.Context, endpoint string, explicitIDs []string) ([]domain.DatasetDescriptor, error) {
	body, err := r.fetcher.Fetch(ctx, endpoint+catalogQuery)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("reading catalog csv: %w", err)}
	}
	if len(records) == 0 {
		return nil, &FormatError{Endpoint: endpoint, Column: "datasetID"}
	}

	header := records[0]
	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"datasetID", "dataStructure", "files", "iso19115"} {
		if _, ok := cols[required]; !ok {
			return nil, &FormatError{Endpoint: endpoint, Column: required}
		}
	}

	wanted := make(map[string]bool, len(explicitIDs))
	for _, id := range explicitIDs {
		wanted[id] = true
	}

	var datasets []domain.DatasetDescriptor
	for _, row := range records[1:] {
		id := field(row, cols["datasetID"])
		structure := field(row, cols["dataStructure"])

		// The catalog lists itself and a units row; neither is a dataset.
		if id == "" || id == "allDatasets" || structure == "" {
			continue
		}
		if len(wanted) > 0 && !wanted[id] {
			continue
		}

		datasets = append(datasets, domain.DatasetDescriptor{
			ID:             id,
			Kind:           domain.StructureKind(structure),
			FileListingURL: field(row, cols["files"]),
			MetadataURL:    field(row, cols["iso19115"]),
		})
	}

	r.logger.Debug("Resolved catalog", "endpoint", endpoint, "datasets", len(datasets))
	return datasets, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
