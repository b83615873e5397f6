// Package checker verifies command and environment availability before
// risky work. Evaluation is stateless and side-effect-free: the target
// is never executed.
package checker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mpataki/saferun/internal/exitcode"
)

// Target describes one check request.
type Target struct {
	// Name is a command name (resolved via PATH) or an explicit path
	// (anything containing a path separator).
	Name string
	// Executable requests verification of the executable bit (Unix).
	Executable bool
	// RepoState requests verification that every repo marker exists
	// under WorkDir.
	RepoState bool

	RepoMarkers []string
	WorkDir     string
}

// Evaluate runs the requested checks in order, short-circuiting on the
// first failure, and returns the resolved path on success. Failures are
// returned as *exitcode.Error with the taxonomy code for the failing
// check.
func Evaluate(t Target) (string, error) {
	resolved, err := resolve(t.Name)
	if err != nil {
		return "", err
	}

	if t.Executable {
		if err := checkExecutable(resolved); err != nil {
			return "", err
		}
	}

	if t.RepoState {
		if err := checkRepoState(t.WorkDir, t.RepoMarkers); err != nil {
			return "", err
		}
	}

	return resolved, nil
}

func resolve(name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		info, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			return "", exitcode.New(exitcode.Usage, "not found: %s", name)
		}
		if err != nil {
			return "", exitcode.New(exitcode.Usage, "cannot stat %s: %v", name, err)
		}
		if info.IsDir() {
			return "", exitcode.New(exitcode.Usage, "not found: %s is a directory", name)
		}
		return name, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", exitcode.New(exitcode.Usage, "not found: %s (searched PATH=%s)", name, os.Getenv("PATH"))
	}
	return path, nil
}

func checkExecutable(path string) error {
	if runtime.GOOS == "windows" {
		// Resolution implies executability on Windows.
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return exitcode.New(exitcode.Usage, "cannot stat %s: %v", path, err)
	}
	if info.Mode()&0111 == 0 {
		return exitcode.New(exitcode.NotExecutable, "not executable: %s (mode %s)", path, info.Mode().Perm())
	}
	return nil
}

func checkRepoState(workDir string, markers []string) error {
	if workDir == "" {
		workDir = "."
	}
	for _, marker := range markers {
		path := filepath.Join(workDir, marker)
		if _, err := os.Stat(path); err != nil {
			return exitcode.New(exitcode.RepoState, "repo-state: missing marker %s (looked at %s)", marker, path)
		}
	}
	return nil
}

// Describe summarizes the checks a target requests, for diagnostics.
func Describe(t Target) string {
	checks := []string{"existence"}
	if t.Executable {
		checks = append(checks, "executable")
	}
	if t.RepoState {
		checks = append(checks, "repo-state")
	}
	return fmt.Sprintf("%s [%s]", t.Name, strings.Join(checks, ", "))
}
