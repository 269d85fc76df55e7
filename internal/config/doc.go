// Package config loads application settings and defines the audit policy.
//
// # Application settings
//
// Settings are read from environment variables first, then from an optional
// YAML file (config.yaml, configs/config.yaml, or the path in BALLOT_CONFIG).
// A variable that is set in the environment always wins over the file.
//
//	BALLOT_SERVER_PORT=8080
//	BALLOT_LOGGING_LEVEL=debug
//	BALLOT_AUDIT_POLICY_FILE=policy.yaml
//	BALLOT_AUDIT_PSEUDONYM_SALT=s3cret
//	BALLOT_SHEETS_SPREADSHEET_ID=1AbC...
//
// # Audit policy
//
// AuditConfig is an immutable value. DefaultAudit returns the organizer's
// published rules; alternate policies are derived with With:
//
//	strict := config.DefaultAudit().With(
//	    config.WithMinGlobalDelta(5),
//	    config.WithNightHours(23, 6),
//	)
//
// A PolicyFile carries the same overrides in YAML.
package config
