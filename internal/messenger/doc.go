// Package messenger turns the transport's byte stream into logical messages
// and multiplexes them across channels.
//
// InStream reassembles one message from one or more frames, decrypting
// frame payloads of encrypted messages. OutStream splits one message into
// frames, encrypting each frame payload separately, and streams them in
// order. Both are single-flight: starting a second operation while one is
// outstanding is rejected with OPERATION_IN_PROGRESS.
//
// Messenger sits on top of the two streams. Channels ask it for "the next
// message on channel C" and hand it messages to send. Receives are fanned
// out by channel id: a message nobody asked for yet is buffered until a
// receive for its channel arrives. Sends are queued globally and streamed
// one at a time in the order they were enqueued.
//
// Messenger uses one strand for receiving and one for sending; neither side
// ever waits on the other.
package messenger
