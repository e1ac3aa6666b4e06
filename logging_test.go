package ogrenewt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "physics", false)

	logger.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())
	assert.False(t, logger.DebugEnabled())

	logger.SetDebug(true)
	logger.Debugf("shown %d", 2)
	logger.Warnf("careful")

	out := buf.String()
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "component=physics")
	assert.NotContains(t, out, "hidden")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.SetDebug(true)

	assert.False(t, logger.DebugEnabled())
	assert.NotPanics(t, func() {
		logger.Debugf("x")
		logger.Infof("x")
		logger.Warnf("x")
		logger.Errorf("x")
	})
}
