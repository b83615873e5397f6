package ledger

import "strings"

// CanonicalCommand renders an argv as the deterministic shell-quoted
// string used in the start META event. Re-tokenizing the result with
// POSIX shell quoting rules reproduces the original argv exactly.
//
// The rendering is for display and logging only; execution never passes
// through a shell.
func CanonicalCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		parts[i] = quoteArg(arg)
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg != "" && isBare(arg) {
		return arg
	}
	// Single quotes, with embedded quotes escaped as '\''.
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// isBare reports whether the argument can be left unquoted: only
// alphanumerics, underscore, dash, dot, slash and equals.
func isBare(arg string) bool {
	for _, r := range arg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}
