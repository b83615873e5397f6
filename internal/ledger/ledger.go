// Package ledger implements the append-only event ledger: every line of
// output the tool observes, plus its own lifecycle markers, tagged with
// a single global monotonic sequence number.
//
// Sequence order is the order this process observed bytes on the two
// pipes. It is not the order the child emitted them; reconstructing true
// cross-stream interleaving would require merging the streams inside the
// child, which this tool does not do.
package ledger

import "sync"

type Stream string

const (
	Stdout Stream = "STDOUT"
	Stderr Stream = "STDERR"
	Meta   Stream = "META"
)

// Event is one observed unit of output or one lifecycle marker.
// Immutable once appended.
type Event struct {
	Seq    uint64
	Stream Stream
	Text   string
}

// Ledger assigns sequence numbers starting at 1, with no gaps or
// repeats, across all streams. Safe for concurrent appends.
type Ledger struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
}

func New() *Ledger {
	return &Ledger{}
}

// Append records an event and returns it with its assigned sequence
// number.
func (l *Ledger) Append(stream Stream, text string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	ev := Event{Seq: l.seq, Stream: stream, Text: text}
	l.events = append(l.events, ev)
	return ev
}

// Snapshot returns a read-only copy of the events appended so far.
func (l *Ledger) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of events appended so far.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
