// Package protocol implements the aalink frame codec.
//
// Every logical message exchanged with the phone is carried in one or more
// frames. This package encodes and decodes the fixed binary structures that
// make up a frame; it performs no I/O and holds no state.
//
// # Frame Layout
//
// All multi-byte integers are big-endian:
//
//	+------------+-------+----------------------+-----------------+
//	| channel id | flags | frame size           | payload         |
//	| 1 byte     | 1 byte| 2 bytes, or 2+4 bytes| <= 16384 bytes  |
//	+------------+-------+----------------------+-----------------+
//
// The flags byte packs three fields:
//   - bits 0-1: frame type (MIDDLE=0, FIRST=1, LAST=2, BULK=3)
//   - bit 2:    message type (SPECIFIC=0, CONTROL=1)
//   - bit 3:    encryption (PLAIN=0, ENCRYPTED=1)
//
// A FIRST frame carries the extended size field: the payload size of that
// frame followed by the total size of the whole message. All other frames
// carry the short form.
//
// # Message Payload
//
// The reassembled payload of a message begins with a 2-byte message id
// identifying the schema of the body that follows. AV media messages place
// an 8-byte presentation timestamp between the id and the media bytes.
//
// # Usage Example
//
//	header := protocol.FrameHeader{
//	    ChannelID:      protocol.ChannelControl,
//	    FrameType:      protocol.FrameTypeBulk,
//	    EncryptionType: protocol.EncryptionPlain,
//	    MessageType:    protocol.MessageTypeSpecific,
//	}
//	buf := header.AppendTo(nil)
//	buf = protocol.FrameSize{Type: protocol.FrameSizeShort, FrameSize: 4}.AppendTo(buf)
//
// Decoding never rejects an unknown bit pattern; values are masked into
// range and callers decide what an unknown value means.
package protocol
