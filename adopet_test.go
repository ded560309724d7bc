package adopet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adopet"
	"adopet/internal/infra/storage/memory"
)

func TestPublicSurfaceDrivesAChat(t *testing.T) {
	store := memory.NewChatStore()
	uploader := memory.NewUploader()

	s, err := adopet.NewSession(adopet.SessionOptions{
		Store:    store,
		Uploader: uploader,
		Identity: adopet.StaticIdentity("user-1"),
		Profile:  adopet.Profile{PetOwnerName: "Ana"},
	})
	require.NoError(t, err)

	id := adopet.ConversationID("pet-7")
	require.NoError(t, s.Open(context.Background(), id))
	assert.Equal(t, adopet.SessionLive, s.State())
	require.NoError(t, s.SendText(context.Background(), "hello"))
	s.Close()

	r, err := adopet.NewRegistry(adopet.RegistryOptions{
		Store:    store,
		Identity: adopet.StaticIdentity("user-1"),
	})
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	assert.Equal(t, adopet.RegistryReady, r.State())
	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, id, snapshot[0].ID)
	assert.Equal(t, "hello", snapshot[0].LastMessage)
}

func TestPublicSurfaceRecordsAndSendsAClip(t *testing.T) {
	store := memory.NewChatStore()
	uploader := memory.NewUploader()
	device := memory.NewAudioDevice([]byte("voice note"))

	s, err := adopet.NewSession(adopet.SessionOptions{
		Store:    store,
		Uploader: uploader,
		Identity: adopet.StaticIdentity("user-1"),
	})
	require.NoError(t, err)
	id := adopet.ConversationID("pet-8")
	require.NoError(t, s.Open(context.Background(), id))

	rec, err := adopet.NewRecorder(device, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))
	assert.Equal(t, adopet.RecorderRecording, rec.State())
	require.NoError(t, rec.Stop(context.Background()))
	require.NoError(t, rec.SendClip(context.Background(), s))

	messages := store.Messages(id)
	require.Len(t, messages, 1)
	assert.Equal(t, adopet.KindAudio, messages[0].Kind())
}
