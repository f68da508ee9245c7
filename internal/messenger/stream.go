package messenger

import (
	"github.com/muurk/aalink/internal/transport"
)

// Transport is the byte-level I/O the streams run on. *transport.Transport
// implements it.
type Transport interface {
	Receive(size int, p *transport.ReceivePromise)
	Send(data []byte, p *transport.SendPromise)
}

// Cryptor protects payloads of encrypted messages. *cryptor.Cryptor
// implements it.
type Cryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// MessageReceiver produces one message per StartReceive call.
type MessageReceiver interface {
	StartReceive(p *MessagePromise)
}

// MessageSender streams one message per Stream call.
type MessageSender interface {
	Stream(m *Message, p *SendPromise)
}
