package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meetme/matchmaker/internal/config"
)

// captureOutput redirects stdout to a buffer during f()
func captureOutput(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()

	return buf.String()
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatText, Component: "test", Output: &buf})
	Info("hello matchmaker", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello matchmaker")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "key=value")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: FormatJSON, Component: "json_test", Output: &buf})
	Info("json log", "foo", "bar")

	out := buf.String()
	assert.Contains(t, out, `"msg":"json log"`)
	assert.Contains(t, out, `"component":"json_test"`)
	assert.Contains(t, out, `"foo":"bar"`)
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "error", Format: FormatText, Output: &buf})
	Info("should not appear")
	Error("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_ModuleAndWith(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatText, Output: &buf})
	Module("sweeper").Info("sweep finished")
	With("user_id", 31).Info("liked")

	assert.Contains(t, buf.String(), "module=sweeper")
	assert.Contains(t, buf.String(), "user_id=31")
}

func TestLogger_InitFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	cfg.Log.Component = "cfg_test"
	cfg.Log.Source = true

	out := captureOutput(t, func() {
		InitFromConfig(cfg)
		Debug("cfg-based log")
	})

	assert.Contains(t, out, `"msg":"cfg-based log"`)
	assert.Contains(t, out, `"component":"cfg_test"`)
	assert.Contains(t, out, `"source"`)
}

func TestNew_DoesNotReplaceGlobal(t *testing.T) {
	var global, local bytes.Buffer
	Init(&Config{Level: "info", Output: &global})

	New(Config{Level: "info", Output: &local}).Info("local only")

	assert.Empty(t, global.String())
	assert.Contains(t, local.String(), "local only")
}
