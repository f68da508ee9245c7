package channel

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/protocol"
	"google.golang.org/protobuf/encoding/protowire"
)

// VersionStatus is the verdict carried by a VERSION_RESPONSE.
type VersionStatus uint16

const (
	VersionMatch    VersionStatus = 0x0000
	VersionMismatch VersionStatus = 0xFFFF
)

func (s VersionStatus) String() string {
	switch s {
	case VersionMatch:
		return "MATCH"
	case VersionMismatch:
		return "MISMATCH"
	default:
		return fmt.Sprintf("VersionStatus(0x%04x)", uint16(s))
	}
}

// VersionResponse is the phone's answer to a version request.
type VersionResponse struct {
	Major  uint16
	Minor  uint16
	Status VersionStatus
}

// AuthStatus is the status field of AUTH_COMPLETE.
type AuthStatus int32

const (
	AuthOK   AuthStatus = 0
	AuthFail AuthStatus = 1
)

// protobuf field numbers of the bootstrap messages
const (
	authCompleteStatusField = 1
	pingTimestampField      = 1
)

// ControlChannel carries the connection bootstrap on channel CONTROL.
type ControlChannel struct {
	*Channel
}

// NewControl creates the control channel.
func NewControl(m Messenger) *ControlChannel {
	return &ControlChannel{Channel: New(protocol.ChannelControl, m)}
}

// SendVersionRequest announces the protocol version spoken by this side.
func (c *ControlChannel) SendVersionRequest(major, minor uint16, p *messenger.SendPromise) {
	payload := binary.BigEndian.AppendUint16(nil, major)
	payload = binary.BigEndian.AppendUint16(payload, minor)
	c.SendRaw(protocol.MessageVersionRequest, payload, protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
}

// SendHandshake carries one batch of TLS handshake bytes.
func (c *ControlChannel) SendHandshake(data []byte, p *messenger.SendPromise) {
	c.SendRaw(protocol.MessageSSLHandshake, data, protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
}

// SendAuthComplete reports the outcome of the handshake to the phone.
func (c *ControlChannel) SendAuthComplete(status AuthStatus, p *messenger.SendPromise) {
	body := protowire.AppendTag(nil, authCompleteStatusField, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(status))
	c.SendRaw(protocol.MessageAuthComplete, body, protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
}

// SendPingRequest sends a keep-alive carrying timestamp.
func (c *ControlChannel) SendPingRequest(timestamp int64, p *messenger.SendPromise) {
	c.SendRaw(protocol.MessagePingRequest, encodePing(timestamp), protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
}

// SendPingResponse echoes the timestamp of a received ping.
func (c *ControlChannel) SendPingResponse(timestamp int64, p *messenger.SendPromise) {
	c.SendRaw(protocol.MessagePingResponse, encodePing(timestamp), protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
}

// ParseVersionResponse decodes a VERSION_RESPONSE body. Missing fields read
// as zero, and a missing status reads as VersionMismatch.
func ParseVersionResponse(body []byte) VersionResponse {
	resp := VersionResponse{Status: VersionMismatch}
	if len(body) >= 2 {
		resp.Major = binary.BigEndian.Uint16(body[0:2])
	}
	if len(body) >= 4 {
		resp.Minor = binary.BigEndian.Uint16(body[2:4])
	}
	if len(body) >= 6 {
		resp.Status = VersionStatus(binary.BigEndian.Uint16(body[4:6]))
	}
	return resp
}

// ParseAuthComplete decodes the status of an AUTH_COMPLETE body.
func ParseAuthComplete(body []byte) (AuthStatus, error) {
	v, err := varintField(body, authCompleteStatusField)
	if err != nil {
		return 0, err
	}
	return AuthStatus(int32(v)), nil
}

// ParsePing decodes the timestamp of a PING_REQUEST or PING_RESPONSE body.
func ParsePing(body []byte) (int64, error) {
	v, err := varintField(body, pingTimestampField)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func encodePing(timestamp int64) []byte {
	body := protowire.AppendTag(nil, pingTimestampField, protowire.VarintType)
	return protowire.AppendVarint(body, uint64(timestamp))
}

// varintField returns the last occurrence of varint field num, skipping
// every other field.
func varintField(body []byte, num protowire.Number) (uint64, error) {
	var (
		value uint64
		found bool
	)
	for len(body) > 0 {
		n, typ, tagLen := protowire.ConsumeTag(body)
		if tagLen < 0 {
			return 0, errcode.Wrap(errcode.ParsePayload, protowire.ParseError(tagLen))
		}
		body = body[tagLen:]

		if n == num && typ == protowire.VarintType {
			v, l := protowire.ConsumeVarint(body)
			if l < 0 {
				return 0, errcode.Wrap(errcode.ParsePayload, protowire.ParseError(l))
			}
			value, found = v, true
			body = body[l:]
			continue
		}

		l := protowire.ConsumeFieldValue(n, typ, body)
		if l < 0 {
			return 0, errcode.Wrap(errcode.ParsePayload, protowire.ParseError(l))
		}
		body = body[l:]
	}
	if !found {
		return 0, errcode.Wrap(errcode.ParsePayload, fmt.Errorf("field %d missing", num))
	}
	return value, nil
}
