// Package cryptor wraps the TLS client used to protect encrypted channels.
//
// The phone authenticates the head unit with a fixed accessory certificate
// during a TLS handshake that is tunneled inside control-channel messages.
// There is no socket underneath the TLS engine: ciphertext produced by the
// engine is collected in memory and handed to the caller, and ciphertext
// received from the phone is fed back in the same way.
//
// # Handshake
//
// The handshake is driven step by step:
//
//	c := cryptor.New(cryptor.Config{})
//	if err := c.Init(); err != nil {
//	    return err
//	}
//	for {
//	    done, err := c.DoHandshake()
//	    if err != nil {
//	        return err
//	    }
//	    out, _ := c.ReadHandshakeBuffer()
//	    // send out to the phone in an SSL_HANDSHAKE message
//	    if done {
//	        break
//	    }
//	    // receive the phone's answer, then:
//	    _ = c.WriteHandshakeBuffer(answer)
//	}
//
// DoHandshake returns false while another round trip is needed and true
// once the session is active.
//
// # Records
//
// After the handshake, Encrypt turns plaintext into one or more TLS records
// and Decrypt turns received records back into plaintext. Decrypt accepts
// partial records; the remainder is kept until more ciphertext arrives.
//
// # Credentials
//
// The accessory certificate and private key are compiled in. Config can
// substitute other credentials, which tests use to run against a local TLS
// server with disposable keys.
//
// All methods are serialized by one mutex; the TLS engine is never entered
// concurrently.
package cryptor
