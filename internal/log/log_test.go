package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"mediagrab/internal/filesystem"
)

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	if err := Setup(Options{Level: "debug"}); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	Debugf("expanding %s", "hls")
	if !strings.Contains(buf.String(), "expanding hls") {
		t.Errorf("debug message missing: %q", buf.String())
	}

	buf.Reset()
	if err := Setup(Options{Level: "bogus"}); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if Enabled(logrus.InfoLevel) {
		t.Error("unknown level should fall back to warn")
	}
	Infof("hidden")
	Warnf("media set %s failed", "pc")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "media set pc failed") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	if err := Setup(Options{Level: "info", JSON: true}); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	WithField("extractor", "bbc").Info("done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["extractor"] != "bbc" || entry["msg"] != "done" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetupFile(t *testing.T) {
	filesystem.SetMemMapFs()
	t.Cleanup(filesystem.SetOsFs)

	if err := Setup(Options{Level: "warn", File: "/logs/mediagrab.log"}); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	Warnf("written to file")

	data, err := filesystem.API().ReadFile("/logs/mediagrab.log")
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}
