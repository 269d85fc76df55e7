// Package ingest turns a tabular vote export into a canonical domain.Ballot.
//
// Sources (CSV, XLSX, Google Sheets) produce a Table of raw strings.
// Normalize resolves the timestamp, email and choice columns through fixed
// alias lists, parses timestamps day-first, lowercases emails and keeps every
// other column as passthrough. Rows whose timestamp does not parse are
// dropped and counted.
package ingest
