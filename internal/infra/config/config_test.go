package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "adopet", cfg.MongoDB)
	assert.Equal(t, "chat.activity", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers, "kafka is optional")
	assert.Equal(t, cfg.S3Endpoint, cfg.S3PublicEndpoint)
	assert.False(t, cfg.S3UseSSL)
}

func TestLoadKafkaBrokersSplit(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBadBool(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("S3_USE_SSL", "sometimes")

	_, err := Load()
	require.Error(t, err)
}
