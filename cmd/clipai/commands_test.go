package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/clipai/internal/plugin"
)

const upperScript = `
local clipai = require("clipai")

clipai.register{
    id = "Upper",
    process_text = function(text)
        return string.upper(text)
    end,
}
`

type cli struct {
	t      *testing.T
	dir    string
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	body := strings.NewReplacer("$DIR", filepath.ToSlash(dir)).Replace(`
plugins:
  dir: $DIR/plugins
data_dir: $DIR/data
settings:
  path: $DIR/settings.json
  watch: false
logging:
  level: error
notifications:
  terminal: false
`)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return &cli{t: t, dir: dir, config: path}
}

func (c *cli) addScript(name, code string) {
	c.t.Helper()
	dir := filepath.Join(c.dir, "plugins")
	require.NoError(c.t, os.MkdirAll(dir, 0o755))
	require.NoError(c.t, os.WriteFile(filepath.Join(dir, name), []byte(code), 0o644))
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	root := newRootCommand("test", "abc", "today")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", c.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestProcess_Pipeline(t *testing.T) {
	c := newCLI(t)
	c.addScript("upper.lua", upperScript)

	out, err := c.run("hello\n", "process", "--no-builtins")
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", out)

	out, err = c.run("", "process", "--no-builtins", "from", "args")
	require.NoError(t, err)
	assert.Equal(t, "FROM ARGS\n", out)
}

func TestProcess_Feature(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "process", "--feature", "JsonFormatter", `{"a": 1}`)
	assert.Error(t, err, "feature is disabled until enabled in settings")

	out, err := c.run("", "enable", "ClipboardAI.Plugins.JsonFormatter")
	require.NoError(t, err)
	assert.Equal(t, "JsonFormatter enabled\n", out)

	out, err = c.run("", "process", "-f", "JsonFormatter", "-o", "minify=true", `{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", out)

	_, err = c.run("", "process", "-f", "JsonFormatter", "--content-type", "hologram", "{}")
	assert.ErrorContains(t, err, "unknown content type")
}

func TestEnableDisable(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "disable", "Ocr")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(c.dir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ocr")

	_, err = c.run("", "disable")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	c := newCLI(t)
	c.addScript("upper.lua", upperScript)
	c.addScript("broken.lua", "this is not lua")

	out, err := c.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Upper")
	assert.Contains(t, out, "JsonFormatter")
	assert.Contains(t, out, "load failed")
	assert.Contains(t, out, "broken.lua")
}

func TestFeatures(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("", "features")
	require.NoError(t, err)
	for _, id := range []string{"JsonFormatter", "SmartFormatting", "LanguageDetection"} {
		assert.Contains(t, out, id)
	}
}

func TestBadConfig(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.config, []byte("logging:\n  level: loud\n"), 0o644))

	_, err := c.run("", "list")
	assert.ErrorContains(t, err, "logging.level")
}

func TestParseValues(t *testing.T) {
	got := parseValues(map[string]string{"indent": "4", "ratio": "0.5", "minify": "true", "name": "x"})
	assert.Equal(t, map[string]any{"indent": 4, "ratio": 0.5, "minify": true, "name": "x"}, got)
	assert.Nil(t, parseValues(nil))
}

func TestParseContentType(t *testing.T) {
	ct, err := parseContentType("Code")
	require.NoError(t, err)
	assert.Equal(t, plugin.ContentCode, ct)
}
