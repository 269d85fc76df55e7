// Package services implements the application layer between transports
// (CLI, HTTP) and the audit packages.
//
// # Services
//
//	- AuditService: runs ingest, the audit pipeline and insights for one
//	  vote source, traces each stage and records audit metrics
//	- HealthService: health, readiness, liveness and version information
//
// AuditService.Run returns an AuditResult that still holds raw emails.
// Anything leaving the process goes through PublicReport or Export, which
// pseudonymize addresses.
//
// # Errors
//
// Services return *errors.AppError values so handlers can map them to
// problem details:
//
//	result, err := svc.Run(ctx, services.AuditRequest{Source: src, Policy: policy})
//	if err != nil {
//	    errHandler.HandleError(w, r, err)
//	    return
//	}
package services
