package runner

// Status is the lifecycle outcome of one execution.
type Status string

const (
	StatusDone    Status = "DONE"
	StatusFail    Status = "FAIL"
	StatusAborted Status = "ABORTED"
)

// CauseKind tags how the child process terminated.
type CauseKind int

const (
	// CauseNormal: the child exited on its own with a code.
	CauseNormal CauseKind = iota
	// CauseSignaled: the child was killed by a signal (Unix).
	CauseSignaled
	// CauseNative: platform-native termination; the OS exit code is
	// passed through with no signal-style translation (Windows).
	CauseNative
)

// Cause is the tagged termination union produced by the per-platform
// backend. All downstream exit-code and status logic depends only on
// this type, never on raw OS values.
type Cause struct {
	Kind   CauseKind
	Code   int // CauseNormal, CauseNative
	Signal int // CauseSignaled
}

// ExitCode maps the termination cause to a process exit code.
// Signal S maps to 128+S per shell convention.
func (c Cause) ExitCode() int {
	if c.Kind == CauseSignaled {
		return 128 + c.Signal
	}
	return c.Code
}
