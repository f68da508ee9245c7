package transport

import (
	"context"
	"errors"

	"github.com/muurk/aalink/internal/errcode"
)

// Endpoint performs single physical reads and writes on the device.
//
// Read fills at most len(buf) bytes and returns how many it wrote. Write
// may accept fewer than len(data) bytes; the transport calls it again with
// the remainder. Both must return promptly once ctx is cancelled.
type Endpoint interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Write(ctx context.Context, data []byte) (int, error)
	Close() error
}

// abortedOr returns OPERATION_ABORTED when ctx has been cancelled and err
// otherwise. Endpoints use it so cancellation always surfaces the same way.
func abortedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return errcode.Wrap(errcode.OperationAborted, err)
	}
	return err
}
