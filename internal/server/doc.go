// Package server accepts phones in wireless projection mode.
//
// The server listens for plain TCP connections and, optionally, for
// WebSocket connections from a bridge that tunnels the phone's byte stream
// in binary messages. Every accepted connection becomes a session:
//
//	accept -> session.New -> Handshake -> Handler
//
// The Handler decides what to do with an established session; the default
// one runs Serve and logs every message it is handed.
//
// # Lifecycle
//
//	srv, err := server.New(server.Config{TCPAddress: ":5277"})
//	if err != nil {
//	    return err
//	}
//	if err := srv.Listen(); err != nil {
//	    return err
//	}
//	return srv.Serve(ctx) // returns after ctx ends and sessions are closed
//
// Active sessions are tracked by remote address. Shutdown closes the
// listeners, then every active session, and waits for their handlers to
// return.
package server
