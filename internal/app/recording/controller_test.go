package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adopet/internal/app/policies"
	"adopet/internal/app/session"
	domainchat "adopet/internal/domain/chat"
	"adopet/internal/infra/storage/memory"
)

func newController(t *testing.T, device policies.AudioDevice) *Controller {
	t.Helper()
	c, err := New(device, nil)
	require.NoError(t, err)
	return c
}

func TestStartStopProducesClip(t *testing.T) {
	device := memory.NewAudioDevice([]byte("voice"))
	c := newController(t, device)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRecording, c.State())

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.HasClip())
}

func TestStartWhileRecordingIsRejected(t *testing.T) {
	device := memory.NewAudioDevice([]byte("voice"))
	c := newController(t, device)

	require.NoError(t, c.Start(context.Background()))
	err := c.Start(context.Background())
	assert.ErrorIs(t, err, domainchat.ErrAlreadyRecording)
	assert.Equal(t, 1, device.Begins(), "the original capture is unaffected")

	// The first recording still finishes normally.
	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, c.HasClip())
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	device := memory.NewAudioDevice([]byte("voice"))
	c := newController(t, device)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.HasClip())
}

func TestStartWithoutPermission(t *testing.T) {
	device := memory.NewAudioDevice(nil)
	device.DenyPermission = true
	c := newController(t, device)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, domainchat.ErrPermissionDenied)
	assert.Equal(t, StateIdle, c.State())
}

func TestCancelDiscardsCapture(t *testing.T) {
	device := memory.NewAudioDevice([]byte("voice"))
	c := newController(t, device)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Cancel(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.HasClip())
	assert.Equal(t, 1, device.Discards())

	err := c.Cancel(context.Background())
	assert.ErrorIs(t, err, domainchat.ErrNotRecording)
}

type stallingCapture struct {
	entered chan struct{}
	release chan struct{}
	data    []byte
}

func (c *stallingCapture) Stop(_ context.Context) (io.ReadCloser, error) {
	close(c.entered)
	<-c.release
	return io.NopCloser(bytes.NewReader(c.data)), nil
}

func (c *stallingCapture) Discard(_ context.Context) error { return nil }

type stallingDevice struct{ capture *stallingCapture }

func (d *stallingDevice) Begin(_ context.Context) (policies.Capture, error) {
	return d.capture, nil
}

func TestCancelWhileStopIsFinalizing(t *testing.T) {
	capture := &stallingCapture{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		data:    []byte("voice"),
	}
	c := newController(t, &stallingDevice{capture: capture})
	require.NoError(t, c.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Stop(context.Background()) }()
	<-capture.entered

	// The capture is already being finalized; there is nothing left to
	// cancel and a second Stop has nothing to do.
	err := c.Cancel(context.Background())
	assert.ErrorIs(t, err, domainchat.ErrNotRecording)
	require.NoError(t, c.Stop(context.Background()))

	close(capture.release)
	require.NoError(t, <-done)
	assert.True(t, c.HasClip(), "the finalizing Stop still wins its clip")
}

type flakyAudioSender struct {
	failures int
	payloads [][]byte
}

func (s *flakyAudioSender) SendAudio(_ context.Context, _ string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	s.payloads = append(s.payloads, data)
	if s.failures > 0 {
		s.failures--
		return errors.New("send failed")
	}
	return nil
}

func TestSendClipRetryResendsFullAudio(t *testing.T) {
	device := memory.NewAudioDevice([]byte("recorded audio"))
	c := newController(t, device)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))

	sender := &flakyAudioSender{failures: 1}
	require.Error(t, c.SendClip(context.Background(), sender))
	assert.True(t, c.HasClip(), "clip is kept for retry")

	require.NoError(t, c.SendClip(context.Background(), sender))
	assert.False(t, c.HasClip())
	require.Len(t, sender.payloads, 2)
	assert.Equal(t, []byte("recorded audio"), sender.payloads[0])
	assert.Equal(t, []byte("recorded audio"), sender.payloads[1], "a retry must replay the whole clip, not a leftover tail")
}

func TestSendClipWithoutClip(t *testing.T) {
	device := memory.NewAudioDevice([]byte("voice"))
	c := newController(t, device)

	err := c.SendClip(context.Background(), nil)
	assert.ErrorIs(t, err, domainchat.ErrNotRecording)
}

func TestSendClipFeedsSessionAudioSend(t *testing.T) {
	store := memory.NewChatStore()
	uploader := memory.NewUploader()
	s, err := session.New(session.Options{
		Store:    store,
		Uploader: uploader,
		Identity: policies.StaticIdentity("user-1"),
	})
	require.NoError(t, err)
	id := domainchat.ConversationID("pet-3")
	require.NoError(t, s.Open(context.Background(), id))

	device := memory.NewAudioDevice([]byte("recorded audio"))
	c := newController(t, device)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))

	require.NoError(t, c.SendClip(context.Background(), s))
	assert.False(t, c.HasClip(), "clip is cleared after a successful send")

	messages := store.Messages(id)
	require.Len(t, messages, 1)
	assert.Equal(t, domainchat.KindAudio, messages[0].Kind())
	assert.True(t, strings.HasPrefix(messages[0].AudioURL, "memory://audio/"))
	assert.Equal(t, 1, uploader.Count())
}
