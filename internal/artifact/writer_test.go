package artifact

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mpataki/saferun/internal/ledger"
	"github.com/mpataki/saferun/internal/runner"
)

func sampleEvents() []ledger.Event {
	return []ledger.Event{
		{Seq: 1, Stream: ledger.Meta, Text: `safe-run start: cmd="false"`},
		{Seq: 2, Stream: ledger.Meta, Text: "safe-run exit: code=1"},
	}
}

// TestWriteIfNeededSkipsSuccess verifies that a successful execution
// never creates a log artifact: nothing is written and the log
// directory is not even created.
func TestWriteIfNeededSkipsSuccess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := &Writer{Dir: dir}

	res := &runner.Result{
		ExitCode: 0,
		Status:   runner.StatusDone,
		Events: []ledger.Event{
			{Seq: 1, Stream: ledger.Meta, Text: `safe-run start: cmd="echo hi"`},
			{Seq: 2, Stream: ledger.Stdout, Text: "hi"},
			{Seq: 3, Stream: ledger.Meta, Text: "safe-run exit: code=0"},
		},
	}

	path, err := w.WriteIfNeeded(time.Now(), os.Getpid(), res)
	if err != nil {
		t.Fatalf("WriteIfNeeded failed: %v", err)
	}
	if path != "" {
		t.Errorf("success produced an artifact at %s", path)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("log directory was created for a successful run")
	}
}

func TestWriteIfNeededWritesOnFailure(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}

	res := &runner.Result{
		ExitCode: 1,
		Status:   runner.StatusFail,
		Events:   sampleEvents(),
	}

	path, err := w.WriteIfNeeded(time.Now(), os.Getpid(), res)
	if err != nil {
		t.Fatalf("WriteIfNeeded failed: %v", err)
	}
	if path == "" {
		t.Fatal("failure produced no artifact")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("log directory has %d entries, want exactly 1", len(entries))
	}
}

func TestWriteIfNeededWritesOnAbort(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}

	res := &runner.Result{
		ExitCode: 143,
		Status:   runner.StatusAborted,
		Signal:   "SIGTERM",
		Events:   sampleEvents(),
	}

	path, err := w.WriteIfNeeded(time.Now(), os.Getpid(), res)
	if err != nil {
		t.Fatalf("WriteIfNeeded failed: %v", err)
	}
	if !strings.Contains(filepath.Base(path), "-ABORTED") {
		t.Errorf("abort artifact named %s", filepath.Base(path))
	}
}

func TestWriteCreatesLogMatchingPattern(t *testing.T) {
	w := &Writer{Dir: filepath.Join(t.TempDir(), "nested", "logs")}

	now := time.Date(2026, 8, 27, 12, 5, 30, 0, time.UTC)
	path, err := w.Write(now, 4242, "FAIL", sampleEvents())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	name := filepath.Base(path)
	want := "20260827T120530Z-pid4242-FAIL.log"
	if name != want {
		t.Errorf("log name = %q, want %q", name, want)
	}

	pattern := regexp.MustCompile(`^\d{8}T\d{6}Z-pid\d+-(FAIL|ABORTED)\.log$`)
	if !pattern.MatchString(name) {
		t.Errorf("log name %q does not match the artifact pattern", name)
	}
}

// TestWriteNeverOverwrites drives two writes with an identical
// timestamp, pid and status: the second must pick a suffixed name and
// leave the first file untouched.
func TestWriteNeverOverwrites(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	now := time.Date(2026, 8, 27, 12, 5, 30, 0, time.UTC)

	first, err := w.Write(now, 1, "ABORTED", sampleEvents())
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	firstContent, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}

	second, err := w.Write(now, 1, "ABORTED", []ledger.Event{
		{Seq: 1, Stream: ledger.Meta, Text: "different"},
	})
	if err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	if second == first {
		t.Fatalf("second write reused path %s", first)
	}
	if filepath.Base(second) != "20260827T120530Z-pid1-ABORTED-1.log" {
		t.Errorf("second log name = %q", filepath.Base(second))
	}

	after, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(firstContent) {
		t.Error("first log file was modified by the second write")
	}
}

// TestWriteLogAlwaysLedgerView pins the decision that persisted logs
// use the ledger rendering unconditionally.
func TestWriteLogAlwaysLedgerView(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	events := sampleEvents()

	path, err := w.Write(time.Now(), os.Getpid(), "FAIL", events)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != ledger.RenderLedger(events) {
		t.Errorf("log content is not the ledger view:\n%s", content)
	}
}
