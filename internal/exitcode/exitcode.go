// Package exitcode defines the process exit code taxonomy shared by all
// saferun subcommands and by the wrapper scripts that invoke them.
package exitcode

import "fmt"

const (
	OK               = 0   // success
	Failure          = 1   // general failure
	Usage            = 2   // usage error or target not found
	NotExecutable    = 3   // target present but not executable
	RepoState        = 4   // repository state check failed
	ArchiveCollision = 40  // destination exists in strict collision mode
	ArchiveIO        = 50  // archive traversal or compression failure
	NotFound         = 127 // child executable could not be resolved
	SigInt           = 130 // aborted by SIGINT
	SigTerm          = 143 // aborted by SIGTERM
)

// Error carries a specific exit code alongside a diagnostic message so
// subcommands can surface both through a single error return.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Msg
}

// New builds an Error with a formatted message.
func New(code int, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Silent builds an Error that sets the process exit code without
// printing anything. Used when the diagnostic has already been written.
func Silent(code int) *Error {
	return &Error{Code: code}
}
