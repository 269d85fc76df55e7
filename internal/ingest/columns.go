package ingest

import (
	"fmt"
	"strings"
)

// Canonical field names.
const (
	FieldTimestamp = "timestamp"
	FieldEmail     = "email"
	FieldChoice    = "choice"
)

// Alias lists are matched exactly and in order; the first present wins.
// Trailing-space variants are real form exports.
var (
	TimestampAliases = []string{"timestamp", "Carimbo de data/hora", "Carimbo de data/hora ", "Timestamp"}
	EmailAliases     = []string{"email", "Endereço de e-mail", "Endereço de e-mail ", "E-mail", "Email"}
	ChoiceAliases    = []string{"Noel escolhido", "Qual o seu Noel favorito?", "Qual o seu Noel favorito? ", "choice"}
)

// SchemaError reports a canonical field with no matching column.
type SchemaError struct {
	Field     string
	Expected  []string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no column for %s: expected one of %s; available columns: %s",
		e.Field, quoteList(e.Expected), quoteList(e.Available))
}

// Columns holds the header index of each canonical field.
type Columns struct {
	Timestamp int
	Email     int
	Choice    int
}

// ResolveColumns finds the canonical fields in headers.
func ResolveColumns(headers []string) (Columns, error) {
	var cols Columns
	fields := []struct {
		name    string
		aliases []string
		dst     *int
	}{
		{FieldTimestamp, TimestampAliases, &cols.Timestamp},
		{FieldEmail, EmailAliases, &cols.Email},
		{FieldChoice, ChoiceAliases, &cols.Choice},
	}

	for _, f := range fields {
		idx := findAlias(headers, f.aliases)
		if idx < 0 {
			return Columns{}, &SchemaError{
				Field:     f.name,
				Expected:  append([]string(nil), f.aliases...),
				Available: append([]string(nil), headers...),
			}
		}
		*f.dst = idx
	}
	return cols, nil
}

func findAlias(headers, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
