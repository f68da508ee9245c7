// Package errcode defines the error taxonomy shared by every layer of the
// aalink protocol stack.
//
// Every failure surfaced by the transport, cryptor, streams and messenger is
// an *Error carrying a Code. Codes are grouped by kind:
//   - I/O transport errors (USB_*, TCP_TRANSFER) carry the native status of
//     the underlying device or socket in Native and wrap the cause in Err.
//   - TLS errors (SSL_*) carry the engine error and, for configuration
//     defects, name the exact initialization step that failed.
//   - Protocol errors (PARSE_PAYLOAD, MESSENGER_INTERTWINED_CHANNELS,
//     DATA_SINK_*) indicate malformed input or a framing bug.
//   - Concurrency contract errors (OPERATION_IN_PROGRESS, OPERATION_ABORTED).
//
// The numeric values are stable and match the values used on the original
// head-unit implementation, so they can be logged and compared across
// implementations.
//
// # Matching
//
// Errors compare by code with errors.Is:
//
//	if errors.Is(err, errcode.New(errcode.OperationAborted)) {
//	    // transport was stopped
//	}
//
// or with the HasCode helper:
//
//	if errcode.HasCode(err, errcode.OperationInProgress) { ... }
package errcode
