package transport

import "github.com/muurk/aalink/internal/errcode"

// ChunkSize is the size of the region handed out by DataSink.Fill.
const ChunkSize = 16384

// DataSink accumulates bytes from the device and hands them out in exactly
// the sizes requested.
//
// Fill returns a separate chunk buffer rather than a window into the
// accumulated data, so the device may write into it while Consume
// compacts the buffer.
type DataSink struct {
	data    []byte
	head    int
	chunk   []byte
	filling bool
}

// NewDataSink creates an empty sink.
func NewDataSink() *DataSink {
	return &DataSink{
		chunk: make([]byte, ChunkSize),
	}
}

// Fill returns a writable region of ChunkSize bytes. The bytes become
// available only after Commit.
func (s *DataSink) Fill() []byte {
	s.filling = true
	return s.chunk
}

// Commit appends the first n bytes of the filled region to the sink.
// Committing zero bytes discards the region.
func (s *DataSink) Commit(n int) error {
	if n > ChunkSize || n < 0 {
		s.filling = false
		return errcode.New(errcode.DataSinkCommitOverflow)
	}

	if s.filling {
		s.data = append(s.data, s.chunk[:n]...)
	}
	s.filling = false
	return nil
}

// AvailableSize returns the number of committed bytes not yet consumed.
func (s *DataSink) AvailableSize() int {
	return len(s.data) - s.head
}

// Consume removes the first n committed bytes and returns them in a new
// slice owned by the caller.
func (s *DataSink) Consume(n int) ([]byte, error) {
	if n > s.AvailableSize() || n < 0 {
		return nil, errcode.New(errcode.DataSinkConsumeUnderflow)
	}

	out := make([]byte, n)
	copy(out, s.data[s.head:s.head+n])
	s.head += n

	switch {
	case s.head == len(s.data):
		s.data = s.data[:0]
		s.head = 0
	case s.head > cap(s.data)/2:
		remaining := copy(s.data, s.data[s.head:])
		s.data = s.data[:remaining]
		s.head = 0
	}

	return out, nil
}
