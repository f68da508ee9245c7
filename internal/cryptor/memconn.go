package cryptor

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// memConn is the in-memory net.Conn under the TLS engine. incoming holds
// ciphertext received from the phone, outgoing holds ciphertext the engine
// produced.
//
// While blocking is set, Read waits for incoming data; the handshake runs in
// its own goroutine on top of that. Afterwards Read reports a temporary
// timeout when nothing is buffered, which makes the engine keep a partial
// record and return control to the caller.
type memConn struct {
	mu   sync.Mutex
	cond *sync.Cond

	incoming []byte
	outgoing []byte
	blocking bool
	waiting  bool
	closed   bool

	handshakeDone bool
	handshakeErr  error
}

func newMemConn() *memConn {
	c := &memConn{blocking: true}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *memConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.incoming) == 0 {
		if c.closed {
			return 0, io.EOF
		}
		if !c.blocking {
			return 0, os.ErrDeadlineExceeded
		}
		c.waiting = true
		c.cond.Broadcast()
		c.cond.Wait()
	}
	c.waiting = false

	n := copy(b, c.incoming)
	c.incoming = c.incoming[n:]
	return n, nil
}

func (c *memConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	c.outgoing = append(c.outgoing, b...)
	return len(b), nil
}

// feed appends ciphertext received from the phone.
func (c *memConn) feed(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.incoming = append(c.incoming, b...)
	c.cond.Broadcast()
}

// drain returns and clears the ciphertext produced so far.
func (c *memConn) drain() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.outgoing
	c.outgoing = nil
	return out
}

// finishHandshake records the handshake outcome and switches Read to
// non-blocking mode.
func (c *memConn) finishHandshake(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handshakeDone = true
	c.handshakeErr = err
	c.blocking = false
	c.cond.Broadcast()
}

// awaitHandshakeStep blocks until the handshake finished or is parked
// waiting for more input from the phone.
func (c *memConn) awaitHandshakeStep() (done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.handshakeDone && !(c.waiting && len(c.incoming) == 0) {
		c.cond.Wait()
	}
	return c.handshakeDone, c.handshakeErr
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cond.Broadcast()
	return nil
}

func (c *memConn) LocalAddr() net.Addr                { return memAddr{} }
func (c *memConn) RemoteAddr() net.Addr               { return memAddr{} }
func (c *memConn) SetDeadline(t time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(t time.Time) error { return nil }

type memAddr struct{}

func (memAddr) Network() string { return "memory" }
func (memAddr) String() string  { return "cryptor" }
