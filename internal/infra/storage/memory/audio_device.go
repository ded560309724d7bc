package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

// AudioDevice simulates the platform microphone. Each Begin produces a
// capture that yields the configured sample bytes on Stop.
type AudioDevice struct {
	mu sync.Mutex

	// Sample is the audio payload every capture records.
	Sample []byte
	// DenyPermission makes Begin fail as an ungranted microphone.
	DenyPermission bool

	begins   int
	discards int
}

// NewAudioDevice builds a device producing the given sample.
func NewAudioDevice(sample []byte) *AudioDevice {
	return &AudioDevice{Sample: sample}
}

// Begin starts a capture or fails with ErrPermissionDenied.
func (d *AudioDevice) Begin(ctx context.Context) (policies.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DenyPermission {
		return nil, domainchat.ErrPermissionDenied
	}
	d.begins++
	return &memoryCapture{device: d, sample: d.Sample}, nil
}

// Begins reports how many captures were started.
func (d *AudioDevice) Begins() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begins
}

// Discards reports how many captures were dropped unsent.
func (d *AudioDevice) Discards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discards
}

type memoryCapture struct {
	device *AudioDevice
	sample []byte
}

func (c *memoryCapture) Stop(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.sample)), nil
}

func (c *memoryCapture) Discard(ctx context.Context) error {
	c.device.mu.Lock()
	c.device.discards++
	c.device.mu.Unlock()
	return nil
}

var _ policies.AudioDevice = (*AudioDevice)(nil)
