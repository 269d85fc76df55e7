// Package http implements the HTTP handlers of the audit server. Handlers
// parse and validate requests, call the services layer and render JSON;
// they hold no audit logic.
//
// # Endpoints
//
//	POST /api/audits        multipart upload, returns the public report
//	GET  /api/policy        default rules, timezone and scenarios
//	GET  /api/health        basic health
//	GET  /api/health/ready  output directory and sheets credentials
//	GET  /api/health/live   runtime information
//	GET  /api/version       build information
//	GET  /metrics           Prometheus exposition
//
// # Uploads
//
// POST /api/audits takes the vote table in the "file" part (CSV, TSV or
// XLSX, chosen by extension) and optional override fields:
//
//	excluded_days     "20,21,22"; an empty value clears the list
//	min_global_delta  seconds
//	min_choice_delta  seconds
//	night_start       hour 0-23
//	night_end         hour 0-23, inclusive
//	z_threshold       robust z cut-off for hourly outliers
//	scenario          A, B or C
//	top               ranking length
//	focus             choice tracked in daily stats
//	sheet             workbook sheet name
//	timezone          IANA zone for naive timestamps
//
// # Errors
//
// Every error is an RFC 7807 problem rendered by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/schema",
//	    "title": "Unrecognized Vote Table",
//	    "status": 422,
//	    "detail": "unrecognized vote table: missing timestamp column",
//	    "instance": "/api/audits"
//	}
//
// The response never carries voter emails; repeat voters appear only as
// salted hashes.
package http
