// Package exporter writes audit results to disk.
//
// CSVWriter is the core writer: it resolves relative names against the
// output directory, prefixes a UTF-8 BOM for Excel and can stream large
// tables row by row. On top of it sit the vote exports (cleaned, flagged,
// hourly), the XLSX workbook and the public JSON report.
//
// Emails never leave this package in clear text. Every export replaces
// them with a Pseudonymizer token, a keyed BLAKE2b digest.
//
// Example usage:
//
//	exp := exporter.NewExporter(paths, exporter.NewPseudonymizer(salt), logger)
//	files, err := exp.ExportAll(ctx, exporter.Bundle{
//		Source:    "respostas.csv",
//		Artifacts: artifacts,
//		Policy:    cfg.Snapshot(),
//		Generated: time.Now(),
//	})
package exporter
