package ledger

import (
	"fmt"
	"strings"
)

// Section and block markers for the ledger view. These are contract
// surface: conforming implementations in other languages emit the same
// bytes.
const (
	stdoutHeader = "=== STDOUT ==="
	stderrHeader = "=== STDERR ==="
	eventsBegin  = "--- BEGIN EVENTS ---"
	eventsEnd    = "--- END EVENTS ---"
)

// FormatEvent renders one event in ledger form: [SEQ=n][STREAM] text.
func FormatEvent(e Event) string {
	return fmt.Sprintf("[SEQ=%d][%s] %s", e.Seq, e.Stream, e.Text)
}

// FormatMerged renders one event in merged form: [#n][STREAM] text.
func FormatMerged(e Event) string {
	return fmt.Sprintf("[#%d][%s] %s", e.Seq, e.Stream, e.Text)
}

// RenderLedger produces the detailed view: split STDOUT and STDERR
// sections followed by the full event block. Identical event lists
// always produce byte-identical output.
func RenderLedger(events []Event) string {
	var b strings.Builder

	b.WriteString(stdoutHeader + "\n")
	for _, e := range events {
		if e.Stream == Stdout {
			b.WriteString(e.Text + "\n")
		}
	}
	b.WriteString("\n" + stderrHeader + "\n")
	for _, e := range events {
		if e.Stream == Stderr {
			b.WriteString(e.Text + "\n")
		}
	}
	b.WriteString("\n" + eventsBegin + "\n")
	for _, e := range events {
		b.WriteString(FormatEvent(e) + "\n")
	}
	b.WriteString(eventsEnd + "\n")

	return b.String()
}

// RenderMerged produces the human-readable view: output events in
// observed order with sequence annotations. META events are suppressed;
// lifecycle markers belong to the ledger view.
func RenderMerged(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		if e.Stream == Meta {
			continue
		}
		b.WriteString(FormatMerged(e) + "\n")
	}
	return b.String()
}
