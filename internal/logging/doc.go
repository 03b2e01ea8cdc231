// Package logging provides structured logging for the AutoConnect service.
//
// This package wraps a zap logger. The logger is silent unless a level is
// passed to Initialize or set through AUTOCONNECT_LOG_LEVEL, so the service
// prints nothing when a controller drives it over shared memory.
//
// # Log Levels
//
//   - Debug: captured frame dumps, ignored commands, throttled decode errors
//   - Info: status log lines (every line a controller sees is mirrored here)
//   - Warn: transient ioctl or socket failures
//   - Error: setup failures that abort a task or the run
//
// # Usage
//
//	if err := logging.Initialize("info"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	log, runID := logging.NewRunLogger()
//	log.Info("Found adapter", logging.Adapter("eth0", 2)...)
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package logging
