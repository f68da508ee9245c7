// Package session wires one connected phone into a working protocol stack.
//
// A Session owns the transport, the cryptor, both message streams, the
// messenger and the control channel for a single endpoint. It drives the
// connection bootstrap:
//
//  1. VERSION_REQUEST, answered by VERSION_RESPONSE
//  2. TLS handshake records exchanged in SSL_HANDSHAKE messages
//  3. AUTH_COMPLETE
//
// After the handshake Serve keeps a receive outstanding on every channel,
// answers the phone's pings, and hands all other messages to the caller.
//
// Every session carries a random id that is attached to its log lines, so
// concurrent phones can be told apart in the output.
package session
