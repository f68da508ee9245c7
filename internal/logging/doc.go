// Package logging provides structured logging for aalink.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the protocol stack. It provides both general
// logging functions and specialized helpers for frames, messages and TLS.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Frame and message traffic, hex dumps, state machine transitions
//   - Info: Connections, handshake completion, session lifecycle
//   - Warn: Rejected operations, dropped promise settlements, connection drops
//   - Error: Transport or TLS failures that tear a session down
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Session started",
//	    zap.String("session_id", id),
//	    zap.String("transport", "tcp"),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(remoteAddr, "connection_accepted")
//	logging.LogTLSHandshake(peer, state)
//	logging.LogFrame("received", "VIDEO", "BULK", true, 1420)
//	logging.LogMessage("sent", "CONTROL", false, payload)
//	logging.LogRawBytes("handshake out", data)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and AALINK_LOG_LEVEL is unset, the logger is a no-op,
// which keeps library use and tests silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
