// Package logging provides a simple leveled logging interface for the
// media explorer, backed by zerolog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL (or DEBUG) environment
// variable. LOG_FORMAT=json switches from console lines to JSON objects.
package logging
