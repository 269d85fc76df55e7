package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffWindow bounds how much input delimiter detection looks at.
const sniffWindow = 64 * 1024

// ReadCSV parses a delimited export. A UTF-8 BOM is skipped and the
// delimiter is detected among comma, semicolon and tab when delim is 0.
func ReadCSV(r io.Reader, delim rune) (*Table, error) {
	br := bufio.NewReaderSize(r, sniffWindow)

	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	if delim == 0 {
		head, _ := br.Peek(sniffWindow)
		delim = sniffDelimiter(head)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	return &Table{Headers: rows[0], Records: rows[1:]}, nil
}

// sniffDelimiter picks the candidate that occurs most often on the header
// line, ignoring quoted text. Ties go to the comma.
func sniffDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, b := range string(sample) {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case b == ',' || b == ';' || b == '\t':
			counts[b]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
