package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsSilent(t *testing.T) {
	l := Logger()
	require.NotNil(t, l)
	assert.False(t, l.IsLevelEnabled(logrus.ErrorLevel))
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	SetLogger(l)

	Logger().WithField("piece", "left").Info("wrote piece")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "left", entry["piece"])
	assert.Equal(t, "wrote piece", entry["msg"])

	SetLogger(nil)
	assert.NotSame(t, l, Logger())
	assert.False(t, Logger().IsLevelEnabled(logrus.ErrorLevel))
}

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		json    bool
		want    logrus.Level
		wantErr bool
	}{
		{"debug", false, logrus.DebugLevel, false},
		{"warning", true, logrus.WarnLevel, false},
		{"loud", false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level, tt.json)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.GetLevel())
			_, isJSON := l.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.json, isJSON)
		})
	}
}
