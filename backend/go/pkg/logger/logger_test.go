package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildersDoNotMutateReceiver(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	l := &Logger{entry: logrus.NewEntry(base).WithField("service_name", "test")}

	l.WithPayload(map[string]interface{}{"k": "v"}).WithErr(errors.New("boom")).Info("decorated")
	l.Info("plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var decorated, plain map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &decorated))
	require.NoError(t, json.Unmarshal(lines[1], &plain))

	assert.Contains(t, decorated, "payload")
	assert.Contains(t, decorated, "error")
	assert.NotContains(t, plain, "payload")
	assert.NotContains(t, plain, "error")
	assert.Equal(t, "test", plain["service_name"])
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}
