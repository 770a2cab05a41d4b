package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidbs/oidbs/mqtt"
)

func TestMQTTAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewMQTTAdapter(zerolog.New(&buf))

	adapter.Info("session established", mqtt.Fields{
		mqtt.LogFieldClientID: "importer-01",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session established", entry["message"])
	assert.Equal(t, "importer-01", entry["client_id"])
}

func TestMQTTAdapterWithFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewMQTTAdapter(zerolog.New(&buf))

	scoped := adapter.WithFields(mqtt.Fields{mqtt.LogFieldBroker: "127.0.0.1:1883"})
	scoped.Warn("broker rejected session", nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "127.0.0.1:1883", entry["broker"])
}

func TestInitLevel(t *testing.T) {
	logger := Init("oidbs", false)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = Init("oidbs", true)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
