package channel

import (
	"fmt"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/protocol"
	"google.golang.org/protobuf/proto"
)

// Split separates a received message into its message id and body.
func Split(msg *messenger.Message) (protocol.MessageID, []byte, error) {
	id, err := protocol.ParseMessageID(msg.Payload)
	if err != nil {
		return 0, nil, errcode.Wrap(errcode.ParsePayload, err)
	}
	return id, msg.Payload[protocol.MessageIDSize:], nil
}

// Unmarshal decodes a protobuf body.
func Unmarshal(body []byte, out proto.Message) error {
	if err := proto.Unmarshal(body, out); err != nil {
		return errcode.Wrap(errcode.ParsePayload, err)
	}
	return nil
}

// AVMedia is a media buffer received on an AV channel.
type AVMedia struct {
	Timestamp    protocol.Timestamp
	HasTimestamp bool
	Data         []byte
}

// ParseAVMedia decodes the body of an AV_MEDIA_WITH_TIMESTAMP_INDICATION or
// AV_MEDIA_INDICATION message.
func ParseAVMedia(id protocol.MessageID, body []byte) (AVMedia, error) {
	switch id {
	case protocol.MessageAVMediaWithTimestamp:
		ts, err := protocol.ParseTimestamp(body)
		if err != nil {
			return AVMedia{}, errcode.Wrap(errcode.ParsePayload, err)
		}
		return AVMedia{Timestamp: ts, HasTimestamp: true, Data: body[protocol.TimestampSize:]}, nil
	case protocol.MessageAVMedia:
		return AVMedia{Data: body}, nil
	default:
		return AVMedia{}, errcode.Wrap(errcode.ParsePayload, fmt.Errorf("message id %s is not AV media", id))
	}
}
