package ledger

import (
	"strings"
	"testing"
)

func scenarioEvents() []Event {
	return []Event{
		{Seq: 1, Stream: Meta, Text: `safe-run start: cmd="sh -c 'echo out; echo err >&2; exit 7'"`},
		{Seq: 2, Stream: Stdout, Text: "out"},
		{Seq: 3, Stream: Stderr, Text: "err"},
		{Seq: 4, Stream: Meta, Text: "safe-run exit: code=7"},
	}
}

// TestRenderLedgerByteFormat pins the exact bytes of the ledger view:
// split sections first, then the delimited event block.
func TestRenderLedgerByteFormat(t *testing.T) {
	got := RenderLedger(scenarioEvents())
	want := strings.Join([]string{
		"=== STDOUT ===",
		"out",
		"",
		"=== STDERR ===",
		"err",
		"",
		"--- BEGIN EVENTS ---",
		`[SEQ=1][META] safe-run start: cmd="sh -c 'echo out; echo err >&2; exit 7'"`,
		"[SEQ=2][STDOUT] out",
		"[SEQ=3][STDERR] err",
		"[SEQ=4][META] safe-run exit: code=7",
		"--- END EVENTS ---",
		"",
	}, "\n")
	if got != want {
		t.Errorf("ledger view mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderLedgerZeroOutput(t *testing.T) {
	events := []Event{
		{Seq: 1, Stream: Meta, Text: `safe-run start: cmd="false"`},
		{Seq: 2, Stream: Meta, Text: "safe-run exit: code=1"},
	}
	got := RenderLedger(events)
	want := strings.Join([]string{
		"=== STDOUT ===",
		"",
		"=== STDERR ===",
		"",
		"--- BEGIN EVENTS ---",
		`[SEQ=1][META] safe-run start: cmd="false"`,
		"[SEQ=2][META] safe-run exit: code=1",
		"--- END EVENTS ---",
		"",
	}, "\n")
	if got != want {
		t.Errorf("ledger view mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

// TestRenderMergedSuppressesMeta pins the merged-view behavior: only
// output events appear, in seq order, with [#n] annotations.
func TestRenderMergedSuppressesMeta(t *testing.T) {
	got := RenderMerged(scenarioEvents())
	want := "[#2][STDOUT] out\n[#3][STDERR] err\n"
	if got != want {
		t.Errorf("merged view = %q, want %q", got, want)
	}
}

func TestRenderDeterministic(t *testing.T) {
	events := scenarioEvents()
	if RenderLedger(events) != RenderLedger(events) {
		t.Error("ledger rendering is not deterministic")
	}
	if RenderMerged(events) != RenderMerged(events) {
		t.Error("merged rendering is not deterministic")
	}
}
