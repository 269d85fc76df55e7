// Package app wires the HTTP service: configuration, logging, telemetry,
// the audit and health services, and the chi router.
//
// # Initialization Flow
//
//	1. Load configuration from the config file and BALLOT_* variables
//	2. Initialize logging and OpenTelemetry (Prometheus metrics, optional traces)
//	3. Resolve and create the data, output and log directories
//	4. Load the audit policy file, if configured
//	5. Build the pseudonymizer, exporter, audit and health services
//	6. Set up middleware, handlers and the HTTP server
//
// # Usage
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// Server.ShutdownTimeout and flushes telemetry. Initialization errors are
// returned to the caller; the package never calls os.Exit.
package app
