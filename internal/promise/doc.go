// Package promise provides the asynchronous result primitive and the
// serialization domains used by the aalink protocol stack.
//
// A Strand is a cooperative serialization domain: functions posted to it run
// one at a time, in FIFO order, never in parallel with each other. Each
// protocol component owns one or more strands and mutates its state only
// from functions running on them, which removes the need for locks around
// queues and state machines.
//
// A Promise is a single-assignment future bound to a Strand. Handlers
// attached with Then always run on that strand, posted after settlement and
// never inline inside Resolve or Reject:
//
//	p := promise.New[[]byte](strand)
//	p.Then(func(data []byte) {
//	    // runs on strand
//	}, func(err error) {
//	    // runs on strand
//	})
//	transport.Receive(2, p)
//
// A settlement that happens before a handler is attached is retained and
// delivered once Then is called. After Cancel, settlements are dropped and a
// warning is logged, so values never disappear silently.
package promise
