package ingest

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads live form responses from a Google Sheet.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetsSource creates a source authenticated with a service account
// credentials file. Extra client options are appended after it.
func NewSheetsSource(ctx context.Context, credentialsFile, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	if readRange == "" {
		readRange = "A:Z"
	}
	return &SheetsSource{service: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// Name identifies the sheet in logs.
func (s *SheetsSource) Name() string {
	return "sheets:" + s.spreadsheetID + "!" + s.readRange
}

// Load fetches the range with formatted values.
func (s *SheetsSource) Load(ctx context.Context) (*Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read from sheets: %w", err)
	}
	return ValuesToTable(resp.Values), nil
}

// ValuesToTable converts a Sheets value grid, first row as header.
func ValuesToTable(values [][]interface{}) *Table {
	if len(values) == 0 {
		return &Table{}
	}

	toStrings := func(row []interface{}) []string {
		out := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprint(v)
			}
		}
		return out
	}

	t := &Table{Headers: toStrings(values[0])}
	t.Records = make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		t.Records = append(t.Records, toStrings(row))
	}
	return t
}
