// Package channel gives each logical Android Auto channel a typed face over
// the shared messenger.
//
// A Channel pairs a channel id with the messenger. It prefixes outgoing
// payloads with their 2-byte message id, encodes protobuf bodies, and
// splits received messages back into id and body:
//
//	ctrl := channel.NewControl(m)
//	ctrl.SendVersionRequest(1, 1, sendPromise)
//
//	p := promise.New[*messenger.Message](strand)
//	p.Then(func(msg *messenger.Message) {
//	    id, body, err := channel.Split(msg)
//	    ...
//	}, onError)
//	ctrl.Receive(p)
//
// The control channel helpers cover the bootstrap sequence a head unit runs
// before any other channel opens: version exchange, the TLS handshake
// carried in SSL_HANDSHAKE messages, AUTH_COMPLETE and keep-alive pings.
// Service-specific message sets are out of scope; callers encode their own
// protobuf bodies and use Send.
package channel
