package ulogger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("chain", ulogger.WithWriter(&buf), ulogger.WithPretty(false), ulogger.WithLevel("INFO"))

	logger.Debugf("hidden %d", 1)
	logger.Infof("accepted block %d", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "chain", entry["service"])
	assert.Equal(t, "accepted block 7", entry["message"])
}

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("chain", ulogger.WithWriter(&buf), ulogger.WithPretty(false), ulogger.WithLevel("WARN"))

	logger.Infof("hidden")
	assert.Empty(t, buf.String())

	logger.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")

	logger.SetLogLevel("DEBUG")
	logger.Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestZeroLoggerChildKeepsWriter(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.New("parent", ulogger.WithWriter(&buf), ulogger.WithPretty(false))
	child := parent.New("child")

	child.Infof("from child")

	assert.Contains(t, buf.String(), `"service":"child"`)
	assert.Contains(t, buf.String(), "from child")
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("miner", ulogger.WithWriter(&buf))
	logger.Infof("mined block %s", "00ab")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "miner")
	assert.Contains(t, out, "mined block 00ab")
}

type recordingT struct {
	logs   []string
	failed bool
}

func (r *recordingT) Errorf(format string, args ...interface{}) {}
func (r *recordingT) FailNow()                                  { r.failed = true }
func (r *recordingT) Logf(format string, args ...any)           { r.logs = append(r.logs, format) }

func TestErrorTestLogger(t *testing.T) {
	rt := &recordingT{}
	logger := ulogger.NewErrorTestLogger(rt)

	logger.Infof("ignored")
	assert.Empty(t, rt.logs)

	logger.Errorf("boom %d", 1)
	require.Len(t, rt.logs, 1)
	assert.Contains(t, rt.logs[0], "ERR_LEVEL boom %d")
	assert.False(t, rt.failed)

	logger.FailOnError(true)
	logger.Errorf("boom again")
	assert.True(t, rt.failed)

	logger.Shutdown()
	logger.Errorf("after shutdown")
	assert.Len(t, rt.logs, 2)
}

func TestTestLogger(t *testing.T) {
	var logger ulogger.Logger = ulogger.TestLogger{}

	logger.Infof("nothing")
	assert.Equal(t, 0, logger.LogLevel())
	assert.NotNil(t, logger.New("x"))
}
