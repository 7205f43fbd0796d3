package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eniac111/cookbook/internal/config"
)

func TestNew_JSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.Debug("hidden")
	log.Info("resolved", "artifacts", 4)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "resolved", rec["msg"])
	assert.EqualValues(t, 4, rec["artifacts"])

	_, err := uuid.Parse(rec["run_id"].(string))
	assert.NoError(t, err)
}

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	log.Info("quiet")
	assert.Empty(t, buf.String())

	log.Warn("ssl patch failed")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "run_id=")
}
