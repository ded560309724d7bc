// Package adopet is the embeddable realtime chat core of the pet-adoption
// app: live conversation lists, per-conversation sessions with optimistic
// sends, attachment uploads and voice clips.
//
// The implementation lives in internal packages; this package re-exports
// the types and constructors an embedding application wires together. A
// typical setup connects a mongo-backed message store, an S3-compatible
// attachment store and, optionally, a kafka activity publisher:
//
//	cfg, _ := adopet.LoadConfig()
//	logger := adopet.NewLogger(cfg.Env)
//	client, _ := adopet.NewMongoClient(cfg.MongoURI, cfg.MongoDB)
//	store := adopet.NewMongoChatStore(client, logger)
package adopet

import (
	"log/slog"

	"github.com/IBM/sarama"

	"adopet/internal/app/policies"
	"adopet/internal/app/recording"
	"adopet/internal/app/registry"
	"adopet/internal/app/session"
	"adopet/internal/domain/chat"
	"adopet/internal/infra/broker/kafka"
	"adopet/internal/infra/config"
	"adopet/internal/infra/db/mongo"
	"adopet/internal/infra/obs"
	"adopet/internal/infra/storage/s3"
)

// Domain model.
type (
	Conversation   = chat.Conversation
	ConversationID = chat.ConversationID
	Message        = chat.Message
	MessageKind    = chat.MessageKind
	SummaryUpdate  = chat.SummaryUpdate
	DomainEvent    = chat.DomainEvent
)

const (
	KindText  = chat.KindText
	KindImage = chat.KindImage
	KindAudio = chat.KindAudio
)

// Sentinel errors callers branch on with errors.Is.
var (
	ErrPermissionDenied   = chat.ErrPermissionDenied
	ErrStoreUnavailable   = chat.ErrStoreUnavailable
	ErrUploadFailed       = chat.ErrUploadFailed
	ErrSubscriptionFailed = chat.ErrSubscriptionFailed
	ErrAlreadyRecording   = chat.ErrAlreadyRecording
	ErrNotRecording       = chat.ErrNotRecording
	ErrNotSignedIn        = chat.ErrNotSignedIn
	ErrSessionClosed      = chat.ErrSessionClosed
)

// Ports. Implement these to back the core with other infrastructure.
type (
	MessageStore      = policies.MessageStore
	Uploader          = policies.Uploader
	Identity          = policies.Identity
	StaticIdentity    = policies.StaticIdentity
	AudioDevice       = policies.AudioDevice
	Capture           = policies.Capture
	ActivityPublisher = policies.ActivityPublisher
	NopPublisher      = policies.NopPublisher
	Unsubscribe       = policies.Unsubscribe
	SnapshotFunc      = policies.SnapshotFunc
	ConversationsFunc = policies.ConversationsFunc
)

// Conversation session: the per-open-chat state machine.
type (
	Session        = session.Session
	SessionOptions = session.Options
	SessionState   = session.State
	Profile        = session.Profile
	ViewFunc       = session.ViewFunc
)

const (
	SessionIdle        = session.StateIdle
	SessionSubscribing = session.StateSubscribing
	SessionLive        = session.StateLive
	SessionSending     = session.StateSending
	SessionClosed      = session.StateClosed
)

// NewSession builds an idle conversation session.
func NewSession(opts SessionOptions) (*Session, error) { return session.New(opts) }

// Conversation registry: the per-user conversation list.
type (
	Registry        = registry.Registry
	RegistryOptions = registry.Options
	RegistryState   = registry.State
	ListFunc        = registry.UpdateFunc
)

const (
	RegistryIdle    = registry.StateIdle
	RegistryLoading = registry.StateLoading
	RegistryReady   = registry.StateReady
	RegistryError   = registry.StateError
)

// NewRegistry builds an idle conversation registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) { return registry.New(opts) }

// Voice clip recording.
type (
	Recorder      = recording.Controller
	RecorderState = recording.State
	Clip          = recording.Clip
	AudioSender   = recording.AudioSender
)

const (
	RecorderIdle      = recording.StateIdle
	RecorderRecording = recording.StateRecording
	RecorderUploading = recording.StateUploading
)

// NewRecorder builds an idle recording controller over the given device.
func NewRecorder(device AudioDevice, logger *slog.Logger) (*Recorder, error) {
	return recording.New(device, logger)
}

// Mongo-backed message store.
type (
	MongoClient    = mongo.Client
	MongoChatStore = mongo.ChatStore
)

// NewMongoClient connects to the chat database. Change-stream
// subscriptions require the deployment to be a replica set.
func NewMongoClient(uri, database string) (*MongoClient, error) { return mongo.New(uri, database) }

// NewMongoChatStore builds the message store over a connected client.
func NewMongoChatStore(client *MongoClient, logger *slog.Logger) *MongoChatStore {
	return mongo.NewChatStore(client, logger)
}

// S3-compatible attachment storage.
type (
	AttachmentStore  = s3.AttachmentStore
	AttachmentConfig = s3.Config
)

// NewAttachmentStore builds the uploader backing image and audio sends.
func NewAttachmentStore(cfg AttachmentConfig, logger *slog.Logger) (*AttachmentStore, error) {
	return s3.NewAttachmentStore(cfg, logger)
}

// Kafka activity publishing. Optional; sessions and registries fall back
// to a no-op publisher when none is configured.
type ActivityBroker = kafka.Publisher

// NewActivityBroker connects an idempotent sync producer for the topic.
func NewActivityBroker(brokers []string, topic string, cfg *sarama.Config) (*ActivityBroker, error) {
	return kafka.NewPublisher(brokers, topic, cfg)
}

// Config is the environment-derived settings block.
type Config = config.Config

// LoadConfig reads configuration from the environment, including a .env
// file in the working directory when present.
func LoadConfig() (Config, error) { return config.Load() }

// NewLogger returns the chat core's slog logger for the environment.
func NewLogger(env string) *slog.Logger { return obs.NewLogger(env) }
