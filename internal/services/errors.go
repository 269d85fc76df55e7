package services

import "errors"

// Audit service errors
var (
	ErrNoSource            = errors.New("no vote source given")
	ErrInvalidScenario     = errors.New("unknown scenario")
	ErrSheetsNotConfigured = errors.New("google sheets source not configured")
)
