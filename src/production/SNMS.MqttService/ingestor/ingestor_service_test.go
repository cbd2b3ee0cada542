package ingestor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadDropsServerEcho(t *testing.T) {
	_, fromServer := parsePayload([]byte(`{"temperature": 21.5, "fromServer": true}`))
	assert.True(t, fromServer)
}

func TestParsePayloadNumericFields(t *testing.T) {
	raw, fromServer := parsePayload([]byte(`{"temperature": 21.5, "humidity": "60.2", "time": "2025-06-01T12:00:00Z"}`))
	require.False(t, fromServer)

	require.Contains(t, raw.Fields, "temperature")
	assert.Equal(t, 21.5, *raw.Fields["temperature"].Number)
	require.Contains(t, raw.Fields, "humidity")
	assert.Equal(t, 60.2, *raw.Fields["humidity"].Number)
	assert.Equal(t, "2025-06-01T12:00:00Z", raw.Time)
}

func TestParsePayloadSkipsUnparsableValues(t *testing.T) {
	raw, fromServer := parsePayload([]byte(`{"temperature": "warm", "nested": {"a": 1}}`))
	require.False(t, fromServer)
	assert.Empty(t, raw.Fields)
}

func TestParsePayloadBadJSON(t *testing.T) {
	raw, fromServer := parsePayload([]byte(`not json`))
	assert.False(t, fromServer)
	assert.Empty(t, raw.Fields)
}
