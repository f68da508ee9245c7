package channel

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fakeMessenger completes every send and serves receives from inbox.
type fakeMessenger struct {
	mu    sync.Mutex
	sent  []*messenger.Message
	inbox map[protocol.ChannelID]*messenger.Message
	asked []protocol.ChannelID
}

func (m *fakeMessenger) EnqueueReceive(ch protocol.ChannelID, p *messenger.MessagePromise) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, ch)
	if msg, ok := m.inbox[ch]; ok {
		p.Resolve(msg)
	}
}

func (m *fakeMessenger) EnqueueSend(msg *messenger.Message, p *messenger.SendPromise) {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	p.Resolve(promise.Void{})
}

func (m *fakeMessenger) lastSent(t *testing.T) *messenger.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return m.sent[len(m.sent)-1]
}

func sendAndWait(t *testing.T, send func(p *messenger.SendPromise)) error {
	t.Helper()
	p := promise.NewVoid(promise.NewStrand())
	done := make(chan error, 1)
	p.Then(func(promise.Void) { done <- nil }, func(err error) { done <- err })
	send(p)

	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for send")
	}
	return nil
}

func TestControlChannelBootstrapMessages(t *testing.T) {
	tests := []struct {
		name string
		send func(c *ControlChannel, p *messenger.SendPromise)
		want []byte
	}{
		{
			name: "version request",
			send: func(c *ControlChannel, p *messenger.SendPromise) { c.SendVersionRequest(1, 6, p) },
			want: []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x06},
		},
		{
			name: "handshake",
			send: func(c *ControlChannel, p *messenger.SendPromise) { c.SendHandshake([]byte{0x16, 0x03, 0x01}, p) },
			want: []byte{0x00, 0x03, 0x16, 0x03, 0x01},
		},
		{
			name: "auth complete",
			send: func(c *ControlChannel, p *messenger.SendPromise) { c.SendAuthComplete(AuthOK, p) },
			want: []byte{0x00, 0x04, 0x08, 0x00},
		},
		{
			name: "ping request",
			send: func(c *ControlChannel, p *messenger.SendPromise) { c.SendPingRequest(300, p) },
			want: []byte{0x00, 0x0b, 0x08, 0xac, 0x02},
		},
		{
			name: "ping response",
			send: func(c *ControlChannel, p *messenger.SendPromise) { c.SendPingResponse(1, p) },
			want: []byte{0x00, 0x0c, 0x08, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{}
			c := NewControl(m)

			if err := sendAndWait(t, func(p *messenger.SendPromise) { tt.send(c, p) }); err != nil {
				t.Fatalf("send error = %v", err)
			}

			msg := m.lastSent(t)
			if msg.ChannelID != protocol.ChannelControl {
				t.Errorf("ChannelID = %s, want CONTROL", msg.ChannelID)
			}
			if msg.EncryptionType != protocol.EncryptionPlain || msg.MessageType != protocol.MessageTypeSpecific {
				t.Errorf("message = %s, want plain specific", msg)
			}
			if !bytes.Equal(msg.Payload, tt.want) {
				t.Errorf("Payload = %x, want %x", msg.Payload, tt.want)
			}
		})
	}
}

func TestSendProtoBody(t *testing.T) {
	m := &fakeMessenger{}
	c := New(protocol.ChannelSensor, m)

	err := sendAndWait(t, func(p *messenger.SendPromise) {
		c.Send(0x8001, wrapperspb.String("gps"), protocol.EncryptionEncrypted, protocol.MessageTypeSpecific, p)
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msg := m.lastSent(t)
	id, body, err := Split(msg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if id != 0x8001 {
		t.Errorf("id = %s, want 0x8001", id)
	}

	var got wrapperspb.StringValue
	if err := Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.GetValue() != "gps" {
		t.Errorf("body = %q, want %q", got.GetValue(), "gps")
	}
}

func TestSendProtoEncodeFailure(t *testing.T) {
	m := &fakeMessenger{}
	c := New(protocol.ChannelInput, m)

	err := sendAndWait(t, func(p *messenger.SendPromise) {
		c.Send(0x8002, wrapperspb.String("\xff\xfe"), protocol.EncryptionPlain, protocol.MessageTypeSpecific, p)
	})
	if !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("Send() error = %v, want PARSE_PAYLOAD", err)
	}
	if len(m.sent) != 0 {
		t.Errorf("messenger received %d messages, want 0", len(m.sent))
	}
}

func TestSendAVMedia(t *testing.T) {
	m := &fakeMessenger{}
	c := New(protocol.ChannelAVInput, m)

	err := sendAndWait(t, func(p *messenger.SendPromise) {
		c.SendAVMedia(protocol.Timestamp(0x1122334455667788), []byte{0xaa, 0xbb}, p)
	})
	if err != nil {
		t.Fatalf("SendAVMedia() error = %v", err)
	}

	msg := m.lastSent(t)
	if msg.EncryptionType != protocol.EncryptionEncrypted {
		t.Error("AV media must be sent encrypted")
	}

	id, body, err := Split(msg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	media, err := ParseAVMedia(id, body)
	if err != nil {
		t.Fatalf("ParseAVMedia() error = %v", err)
	}
	if !media.HasTimestamp || media.Timestamp != 0x1122334455667788 {
		t.Errorf("Timestamp = %#x (present %v)", uint64(media.Timestamp), media.HasTimestamp)
	}
	if !bytes.Equal(media.Data, []byte{0xaa, 0xbb}) {
		t.Errorf("Data = %x, want aabb", media.Data)
	}
}

func TestReceiveUsesChannelID(t *testing.T) {
	want := messenger.NewMessage(protocol.ChannelVideo, protocol.EncryptionEncrypted, protocol.MessageTypeSpecific)
	want.InsertMessageID(protocol.MessageAVMedia)
	want.InsertPayload([]byte{1, 2, 3})

	m := &fakeMessenger{inbox: map[protocol.ChannelID]*messenger.Message{protocol.ChannelVideo: want}}
	c := New(protocol.ChannelVideo, m)

	p := promise.New[*messenger.Message](promise.NewStrand())
	done := make(chan *messenger.Message, 1)
	p.Then(func(msg *messenger.Message) { done <- msg }, nil)
	c.Receive(p)

	select {
	case got := <-done:
		if got != want {
			t.Errorf("Receive() = %s, want %s", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for receive")
	}
	if len(m.asked) != 1 || m.asked[0] != protocol.ChannelVideo {
		t.Errorf("EnqueueReceive channels = %v, want [VIDEO]", m.asked)
	}
}

func TestParseVersionResponse(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want VersionResponse
	}{
		{"match", []byte{0, 1, 0, 6, 0, 0}, VersionResponse{Major: 1, Minor: 6, Status: VersionMatch}},
		{"mismatch", []byte{0, 2, 0, 0, 0xff, 0xff}, VersionResponse{Major: 2, Status: VersionMismatch}},
		{"no status", []byte{0, 1, 0, 1}, VersionResponse{Major: 1, Minor: 1, Status: VersionMismatch}},
		{"empty", nil, VersionResponse{Status: VersionMismatch}},
	}

	for _, tt := range tests {
		if got := ParseVersionResponse(tt.body); got != tt.want {
			t.Errorf("%s: ParseVersionResponse() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestParsePing(t *testing.T) {
	for _, ts := range []int64{0, 1, 300, 1 << 40, -5} {
		got, err := ParsePing(encodePing(ts))
		if err != nil {
			t.Fatalf("ParsePing(%d) error = %v", ts, err)
		}
		if got != ts {
			t.Errorf("ParsePing() = %d, want %d", got, ts)
		}
	}

	// unknown fields ahead of the timestamp are skipped
	body := append([]byte{0x12, 0x02, 'h', 'i'}, encodePing(42)...)
	if got, err := ParsePing(body); err != nil || got != 42 {
		t.Errorf("ParsePing(with extra field) = %d, %v, want 42", got, err)
	}

	if _, err := ParsePing(nil); !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("ParsePing(nil) error = %v, want PARSE_PAYLOAD", err)
	}
	if _, err := ParsePing([]byte{0x08}); !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("ParsePing(truncated) error = %v, want PARSE_PAYLOAD", err)
	}
}

func TestParseAuthComplete(t *testing.T) {
	status, err := ParseAuthComplete([]byte{0x08, 0x01})
	if err != nil {
		t.Fatalf("ParseAuthComplete() error = %v", err)
	}
	if status != AuthFail {
		t.Errorf("ParseAuthComplete() = %d, want %d", status, AuthFail)
	}
}

func TestSplitShortPayload(t *testing.T) {
	msg := messenger.NewMessage(protocol.ChannelControl, protocol.EncryptionPlain, protocol.MessageTypeSpecific)
	msg.InsertPayload([]byte{0x01})

	if _, _, err := Split(msg); !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("Split() error = %v, want PARSE_PAYLOAD", err)
	}
}

func TestParseAVMediaWithoutTimestamp(t *testing.T) {
	media, err := ParseAVMedia(protocol.MessageAVMedia, []byte{7})
	if err != nil {
		t.Fatalf("ParseAVMedia() error = %v", err)
	}
	if media.HasTimestamp || !bytes.Equal(media.Data, []byte{7}) {
		t.Errorf("ParseAVMedia() = %+v", media)
	}

	if _, err := ParseAVMedia(protocol.MessageAVMediaWithTimestamp, []byte{1, 2}); !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("ParseAVMedia(short) error = %v, want PARSE_PAYLOAD", err)
	}
	if _, err := ParseAVMedia(protocol.MessagePingRequest, nil); !errcode.HasCode(err, errcode.ParsePayload) {
		t.Errorf("ParseAVMedia(ping id) error = %v, want PARSE_PAYLOAD", err)
	}
}

func TestVersionStatusString(t *testing.T) {
	if got := VersionMismatch.String(); got != "MISMATCH" {
		t.Errorf("String() = %q, want MISMATCH", got)
	}
	if got := VersionStatus(7).String(); got != "VersionStatus(0x0007)" {
		t.Errorf("String() = %q", got)
	}
}
