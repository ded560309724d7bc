package policies

import (
	"context"
	"io"
)

// Uploader stores a binary blob in external object storage and returns a
// durable URL. Keys are caller-chosen and should embed a collision-resistant
// component; no uniqueness check is performed here.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (durableURL string, err error)
}
