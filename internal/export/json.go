// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/pplx-tui/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports exchanges to JSON. The output always carries the
// complete records; IncludeMetadata is ignored.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Generator string              `json:"generator"`
	Exported  time.Time           `json:"exported"`
	Exchanges []*storage.Exchange `json:"exchanges"`
}

// Export converts exchanges to indented JSON.
func (e *JSONExporter) Export(exchanges []*storage.Exchange) ([]byte, error) {
	if err := validate(exchanges); err != nil {
		return nil, err
	}
	return json.MarshalIndent(jsonDocument{
		Generator: "pplx",
		Exported:  e.options.now(),
		Exchanges: exchanges,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
