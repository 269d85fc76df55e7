package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "ballotaudit/internal/errors"
	"ballotaudit/pkg/contracts/domain"
)

// Source yields a raw table.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Table, error)
}

// Format identifies an upload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName guesses the format from a file name, defaulting to CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".tsv", ".tab":
		return FormatTSV
	default:
		return FormatCSV
	}
}

// ReaderSource reads an in-memory or streamed upload.
type ReaderSource struct {
	Label  string
	Format Format
	Sheet  string
	Data   []byte
}

// NewReaderSource buffers r; workbooks need random access.
func NewReaderSource(label string, format Format, r io.Reader) (*ReaderSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &ReaderSource{Label: label, Format: format, Data: data}, nil
}

func (s *ReaderSource) Name() string { return s.Label }

func (s *ReaderSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readFormat(bytes.NewReader(s.Data), s.Format, s.Sheet)
}

// FileSource reads a file from disk; the format follows the extension.
type FileSource struct {
	Path  string
	Sheet string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()
	return readFormat(f, FormatFromName(s.Path), s.Sheet)
}

func readFormat(r io.Reader, format Format, sheet string) (*Table, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r, sheet)
	case FormatTSV:
		return ReadCSV(r, '\t')
	default:
		return ReadCSV(r, 0)
	}
}

// Read loads src and normalizes it. Errors are classified as SOURCE or
// SCHEMA application errors; the *SchemaError stays reachable with
// errors.As.
func Read(ctx context.Context, src Source, opts Options) (*domain.Ballot, error) {
	table, err := src.Load(ctx)
	if err != nil {
		return nil, apperrors.NewSourceError(fmt.Sprintf("failed to load %s", src.Name()), err)
	}

	ballot, err := Normalize(table, opts)
	if err != nil {
		appErr := apperrors.NewSchemaError("unrecognized vote table", err)
		if se, ok := err.(*SchemaError); ok {
			appErr.WithContext("field", se.Field).
				WithContext("expected_columns", se.Expected).
				WithContext("available_columns", se.Available)
		}
		return nil, appErr
	}
	return ballot, nil
}

// LoadFile reads and normalizes a file in one call.
func LoadFile(ctx context.Context, path string, opts Options) (*domain.Ballot, error) {
	return Read(ctx, &FileSource{Path: path}, opts)
}
