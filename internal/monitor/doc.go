// Package monitor renders a live view of one session's channel traffic
// in the terminal.
//
// The view polls a StatsSource on a fixed interval and shows the
// negotiated protocol version, TLS state, per-channel message and byte
// counters and the transport throughput since the previous sample.
//
//	err := monitor.Run(ctx, sess, done, monitor.DefaultInterval)
package monitor
