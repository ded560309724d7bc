package policies

import (
	"context"
	"io"
)

// Capture is one in-progress microphone capture. Stop finalizes the take
// and returns a reader over the recorded bytes; Discard drops it.
type Capture interface {
	Stop(ctx context.Context) (io.ReadCloser, error)
	Discard(ctx context.Context) error
}

// AudioDevice abstracts the platform microphone. Begin fails with
// chat.ErrPermissionDenied when microphone access is not granted.
// Exclusive ownership of the device is the caller's concern.
type AudioDevice interface {
	Begin(ctx context.Context) (Capture, error)
}
