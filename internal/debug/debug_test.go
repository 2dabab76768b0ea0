package debug

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestEnabledFollowsVerbose(t *testing.T) {
	oldVerbose, oldEnabled := verboseMode, enabled
	defer func() {
		verboseMode, enabled = oldVerbose, oldEnabled
		resetLogger()
	}()

	enabled = false
	SetVerbose(false)
	if Enabled() {
		t.Error("Enabled() should be false initially")
	}

	SetVerbose(true)
	if !Enabled() {
		t.Error("Enabled() should be true after SetVerbose(true)")
	}

	SetVerbose(false)
	enabled = true
	if !Enabled() {
		t.Error("Enabled() should be true when TICKETPORT_DEBUG is set")
	}
}

func TestLogfWritesOnlyWhenEnabled(t *testing.T) {
	oldEnabled, oldStderr := enabled, os.Stderr
	defer func() {
		enabled = oldEnabled
		os.Stderr = oldStderr
	}()

	for _, on := range []bool{true, false} {
		enabled = on
		r, w, _ := os.Pipe()
		os.Stderr = w

		Logf("batch %s: %d records\n", "tickets-abc", 3)

		w.Close()
		var buf bytes.Buffer
		io.Copy(&buf, r)

		want := ""
		if on {
			want = "batch tickets-abc: 3 records\n"
		}
		if got := buf.String(); got != want {
			t.Errorf("enabled=%v: Logf() output = %q, want %q", on, got, want)
		}
	}
}

func TestPrintNormalHonoursQuiet(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	SetQuiet(false)
	if got := captureStdout(t, func() { PrintNormal("imported %d\n", 4) }); got != "imported 4\n" {
		t.Errorf("PrintNormal() = %q", got)
	}
	if got := captureStdout(t, func() { PrintlnNormal("done", "ok") }); got != "done ok\n" {
		t.Errorf("PrintlnNormal() = %q", got)
	}

	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("IsQuiet() should be true after SetQuiet(true)")
	}
	if got := captureStdout(t, func() {
		PrintNormal("imported %d\n", 4)
		PrintlnNormal("done")
	}); got != "" {
		t.Errorf("quiet mode printed %q", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	oldVerbose, oldEnabled, oldJSON := verboseMode, enabled, jsonMode
	defer func() {
		verboseMode, enabled, jsonMode = oldVerbose, oldEnabled, oldJSON
		resetLogger()
	}()

	enabled = false
	SetVerbose(false)
	SetJSON(false)

	var buf bytes.Buffer
	log := NewLogger(&buf)
	log.Debug("hidden")
	log.Info("shown", "imported", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record emitted at info level: %q", out)
	}
	if !strings.Contains(out, "imported=3") {
		t.Errorf("info record missing: %q", out)
	}

	SetVerbose(true)
	buf.Reset()
	NewLogger(&buf).Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("verbose logger dropped debug record: %q", buf.String())
	}
}

func TestNewLoggerJSON(t *testing.T) {
	oldJSON := jsonMode
	defer func() {
		jsonMode = oldJSON
		resetLogger()
	}()

	SetJSON(true)
	var buf bytes.Buffer
	NewLogger(&buf).Info("report", "skipped", 1)

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "report" || rec["skipped"] != float64(1) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLoggerIsCached(t *testing.T) {
	defer resetLogger()
	resetLogger()
	if Logger() != Logger() {
		t.Error("Logger() should return the same instance until settings change")
	}
}
