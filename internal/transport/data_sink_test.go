package transport

import (
	"bytes"
	"testing"

	"github.com/muurk/aalink/internal/errcode"
)

func TestDataSinkRoundTrip(t *testing.T) {
	for _, k := range []int{0, 1, ChunkSize} {
		sink := NewDataSink()

		region := sink.Fill()
		if len(region) != ChunkSize {
			t.Fatalf("Fill() len = %d, want %d", len(region), ChunkSize)
		}
		for i := 0; i < k; i++ {
			region[i] = byte(i * 7)
		}

		if err := sink.Commit(k); err != nil {
			t.Fatalf("Commit(%d) error = %v", k, err)
		}
		if got := sink.AvailableSize(); got != k {
			t.Errorf("AvailableSize() = %d, want %d", got, k)
		}

		data, err := sink.Consume(k)
		if err != nil {
			t.Fatalf("Consume(%d) error = %v", k, err)
		}
		if !bytes.Equal(data, region[:k]) {
			t.Errorf("Consume(%d) returned different bytes", k)
		}
		if got := sink.AvailableSize(); got != 0 {
			t.Errorf("AvailableSize() after consume = %d, want 0", got)
		}
	}
}

func TestDataSinkCommitOverflow(t *testing.T) {
	sink := NewDataSink()
	sink.Fill()

	err := sink.Commit(ChunkSize + 1)
	if !errcode.HasCode(err, errcode.DataSinkCommitOverflow) {
		t.Errorf("Commit() error = %v, want DATA_SINK_COMMIT_OVERFLOW", err)
	}
	if sink.AvailableSize() != 0 {
		t.Errorf("AvailableSize() = %d, want 0", sink.AvailableSize())
	}
}

func TestDataSinkConsumeUnderflow(t *testing.T) {
	sink := NewDataSink()
	copy(sink.Fill(), "abc")
	if err := sink.Commit(3); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	_, err := sink.Consume(4)
	if !errcode.HasCode(err, errcode.DataSinkConsumeUnderflow) {
		t.Errorf("Consume() error = %v, want DATA_SINK_CONSUME_UNDERFLOW", err)
	}
	if sink.AvailableSize() != 3 {
		t.Errorf("AvailableSize() = %d, want 3 after failed consume", sink.AvailableSize())
	}
}

func TestDataSinkUnevenSizes(t *testing.T) {
	sink := NewDataSink()

	var want []byte
	for i := 0; i < 5; i++ {
		region := sink.Fill()
		n := 1000 + i*3001
		for j := 0; j < n; j++ {
			region[j] = byte(len(want) + j)
		}
		want = append(want, region[:n]...)
		if err := sink.Commit(n); err != nil {
			t.Fatalf("Commit(%d) error = %v", n, err)
		}
	}

	var got []byte
	for _, size := range []int{2, 6, 1, 4000, 333, 9999} {
		data, err := sink.Consume(size)
		if err != nil {
			t.Fatalf("Consume(%d) error = %v", size, err)
		}
		got = append(got, data...)
	}
	rest, err := sink.Consume(sink.AvailableSize())
	if err != nil {
		t.Fatalf("Consume(rest) error = %v", err)
	}
	got = append(got, rest...)

	if !bytes.Equal(got, want) {
		t.Error("consumed bytes differ from committed bytes")
	}
}

func TestDataSinkCommitZeroDiscards(t *testing.T) {
	sink := NewDataSink()
	copy(sink.Fill(), "garbage")
	if err := sink.Commit(0); err != nil {
		t.Fatalf("Commit(0) error = %v", err)
	}

	copy(sink.Fill(), "ok")
	if err := sink.Commit(2); err != nil {
		t.Fatalf("Commit(2) error = %v", err)
	}

	data, err := sink.Consume(2)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Consume() = %q, want %q", data, "ok")
	}
}
