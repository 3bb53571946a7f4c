package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      string
		development   bool
		logFormat     string
		expectedLevel logrus.Level
		expectJSON    bool
	}{
		{
			name:          "development defaults to debug text",
			development:   true,
			expectedLevel: logrus.DebugLevel,
		},
		{
			name:          "production defaults to info json",
			expectedLevel: logrus.InfoLevel,
			expectJSON:    true,
		},
		{
			name:          "explicit level wins",
			logLevel:      "WARN",
			development:   true,
			expectedLevel: logrus.WarnLevel,
		},
		{
			name:          "invalid level falls back to info",
			logLevel:      "loud",
			development:   true,
			expectedLevel: logrus.InfoLevel,
		},
		{
			name:          "json format forced in development",
			development:   true,
			logFormat:     "json",
			expectedLevel: logrus.DebugLevel,
			expectJSON:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", "")
			t.Setenv("LOG_FORMAT", tt.logFormat)
			Logger = nil

			log := InitLogger(tt.logLevel, tt.development)
			require.NotNil(t, log)
			assert.Equal(t, tt.expectedLevel, log.GetLevel())
			assert.Same(t, log, GetLogger())

			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.expectJSON, isJSON)
		})
	}
}

func TestWithSearchContext(t *testing.T) {
	Logger = nil
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	log := InitLogger("info", false)
	var buf bytes.Buffer
	log.SetOutput(&buf)

	WithSearchContext("search-1", 10, 100).Info("search started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search-1", entry["search_id"])
	assert.Equal(t, 10.0, entry["stake"])
	assert.Equal(t, 100.0, entry["desired_win"])
	assert.Equal(t, "search started", entry["msg"])
}
