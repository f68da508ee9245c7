// Package transport moves raw bytes between aalink and the phone.
//
// A Transport queues two kinds of requests: "receive exactly N bytes" and
// "send this whole buffer". It owns one receive strand and one send strand;
// at most one physical read and one physical write are outstanding at any
// time. Bytes read from the device are accumulated in a DataSink and sliced
// into exactly the sizes that queued receives asked for, so the size of one
// I/O completion never has to match the size of one protocol read.
//
// The physical I/O is delegated to an Endpoint. Three backends exist:
//   - TCPEndpoint: a net.Conn, used for wireless head-unit mode
//   - USBEndpoint: bulk IN/OUT endpoints of a phone in accessory mode
//   - WebSocketEndpoint: a byte stream tunneled in binary WebSocket messages
//
// All queuing, buffering and ordering logic is shared; backends differ only
// in how a single read or write is performed.
//
// # Failure Semantics
//
// A failed read rejects every queued receive with the same error and clears
// the receive queue. A failed write rejects only the send it belongs to;
// later sends still run. Stop aborts outstanding I/O and the affected
// promises are rejected with an OPERATION_ABORTED error.
package transport
