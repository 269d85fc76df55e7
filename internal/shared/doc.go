// Package shared holds helpers used by more than one package's tests.
//
// testutil captures slog output in memory and builds vote fixtures (CSV
// text, canonical ballots) so audit, ingest, service and transport tests
// describe their inputs the same way.
package shared
