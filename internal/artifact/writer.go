// Package artifact persists failure logs. A log is written exactly once
// per failed or aborted execution and is never overwritten: creation
// uses exclusive-create, and collisions retry with an attempt counter
// before failing closed.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mpataki/saferun/internal/ledger"
	"github.com/mpataki/saferun/internal/runner"
)

// maxAttempts bounds the collision retry loop. Collisions require an
// identical timestamp, pid and status, so hitting the bound at all
// means something is adversarial about the log directory.
const maxAttempts = 100

type Writer struct {
	// Dir is the log directory, created recursively on first write.
	Dir string
}

// WriteIfNeeded persists a log only when the execution failed or was
// aborted. Successful runs create no artifacts of any kind; the empty
// path reports that nothing was written.
func (w *Writer) WriteIfNeeded(now time.Time, pid int, res *runner.Result) (string, error) {
	if res.Status == runner.StatusDone {
		return "", nil
	}
	return w.Write(now, pid, string(res.Status), res.Events)
}

// Write renders the events in ledger view and persists them as
// {timestamp}-pid{pid}-{status}.log under the log directory, returning
// the created path. The ledger view is used unconditionally so that
// post-mortem artifacts carry full detail whatever view mode the
// terminal used.
func (w *Writer) Write(now time.Time, pid int, status string, events []ledger.Event) (string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	base := fmt.Sprintf("%s-pid%d-%s", now.UTC().Format("20060102T150405Z"), pid, status)
	content := ledger.RenderLedger(events)

	for n := 0; n < maxAttempts; n++ {
		name := base + ".log"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.log", base, n)
		}
		path := filepath.Join(w.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create log file: %w", err)
		}

		_, werr := f.WriteString(content)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("write log file %s: %w", path, werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("close log file %s: %w", path, cerr)
		}
		return path, nil
	}

	return "", fmt.Errorf("could not create log file under %s after %d attempts", w.Dir, maxAttempts)
}
