// Package recording manages the mutually-exclusive microphone lifecycle
// feeding audio sends: Idle → Recording → Idle, with an Uploading phase
// while a stopped clip is handed off.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

// State enumerates the controller lifecycle.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateUploading State = "UPLOADING"
)

// Clip is a finished recording awaiting send. The audio is buffered in
// full so a failed send can be retried from the start.
type Clip struct {
	Filename string
	Data     []byte
}

// AudioSender is the slice of the session API a clip is handed to.
type AudioSender interface {
	SendAudio(ctx context.Context, filename string, content io.Reader) error
}

// Controller owns exclusive access to the microphone; only one active
// recording is permitted at a time.
type Controller struct {
	device policies.AudioDevice
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	capture policies.Capture
	clip    *Clip
}

// New builds an idle controller.
func New(device policies.AudioDevice, logger *slog.Logger) (*Controller, error) {
	if device == nil {
		return nil, fmt.Errorf("recording: audio device is required")
	}
	return &Controller{
		device: device,
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a capture. A second Start without an intervening Stop
// returns ErrAlreadyRecording and leaves the original capture unaffected.
// Missing microphone permission surfaces as ErrPermissionDenied from the
// device.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRecording {
		c.mu.Unlock()
		return domainchat.ErrAlreadyRecording
	}
	c.mu.Unlock()

	capture, err := c.device.Begin(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateRecording {
		// Lost the race to a concurrent Start.
		c.mu.Unlock()
		_ = capture.Discard(ctx)
		return domainchat.ErrAlreadyRecording
	}
	c.state = StateRecording
	c.capture = capture
	c.clip = nil
	c.mu.Unlock()
	return nil
}

// Stop finalizes the capture into a buffered clip. Stop while idle, or
// while another Stop is already finalizing, is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording || c.capture == nil {
		c.mu.Unlock()
		return nil
	}
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()

	content, err := capture.Stop(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("recording: stop capture: %w", err)
	}
	data, readErr := io.ReadAll(content)
	closeErr := content.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	if readErr != nil {
		return fmt.Errorf("recording: read capture: %w", readErr)
	}
	if closeErr != nil && c.logger != nil {
		c.logger.Warn("capture close failed", "error", closeErr)
	}
	c.clip = &Clip{
		Filename: fmt.Sprintf("%d.m4a", c.now().UnixMilli()),
		Data:     data,
	}
	return nil
}

// Cancel discards an in-progress capture or an unsent clip. Cancelling
// while idle with nothing recorded, or while a Stop is already finalizing
// the capture, is ErrNotRecording.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRecording && c.capture != nil {
		capture := c.capture
		c.capture = nil
		c.state = StateIdle
		c.mu.Unlock()
		return capture.Discard(ctx)
	}
	if c.clip != nil {
		c.clip = nil
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return domainchat.ErrNotRecording
}

// HasClip reports whether a stopped clip awaits sending.
func (c *Controller) HasClip() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clip != nil
}

// SendClip hands the stopped clip to the session's audio send and clears
// it on success. Sending with no clip is ErrNotRecording. The clip is kept
// on failure and each attempt reads the buffered audio from the start, so
// the caller can retry.
func (c *Controller) SendClip(ctx context.Context, sender AudioSender) error {
	c.mu.Lock()
	if c.state == StateRecording {
		c.mu.Unlock()
		return domainchat.ErrAlreadyRecording
	}
	if c.clip == nil || c.state == StateUploading {
		c.mu.Unlock()
		return domainchat.ErrNotRecording
	}
	clip := c.clip
	c.state = StateUploading
	c.mu.Unlock()

	err := sender.SendAudio(ctx, clip.Filename, bytes.NewReader(clip.Data))

	c.mu.Lock()
	c.state = StateIdle
	if err == nil {
		c.clip = nil
	}
	c.mu.Unlock()

	if err != nil {
		if c.logger != nil {
			c.logger.Warn("audio send failed", "filename", clip.Filename, "error", err)
		}
		return err
	}
	return nil
}
