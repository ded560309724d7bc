package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"adopet/internal/app/policies"
)

// Uploader keeps uploaded blobs in memory and returns memory:// URLs.
type Uploader struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailWith makes every upload fail without storing anything.
	FailWith error
}

// NewUploader builds an empty uploader.
func NewUploader() *Uploader {
	return &Uploader{blobs: make(map[string][]byte)}
}

// Upload reads the whole blob and stores it under key.
func (u *Uploader) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	u.mu.Lock()
	failErr := u.FailWith
	u.mu.Unlock()
	if failErr != nil {
		return "", failErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("memory: read blob: %w", err)
	}
	u.mu.Lock()
	u.blobs[key] = data
	u.mu.Unlock()
	return "memory://" + key, nil
}

// Blob returns a stored blob for assertions.
func (u *Uploader) Blob(key string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.blobs[key]
	return data, ok
}

// Count reports how many blobs were stored.
func (u *Uploader) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.blobs)
}

var _ policies.Uploader = (*Uploader)(nil)
