// Package runner executes one child process with safe-run semantics:
// two concurrent readers drain stdout and stderr into the event ledger,
// the exit META event is appended only after both readers hit EOF and
// the child has been reaped, and SIGINT/SIGTERM abort cooperatively.
package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mpataki/saferun/internal/config"
	"github.com/mpataki/saferun/internal/exitcode"
	"github.com/mpataki/saferun/internal/ledger"
)

// Result is the finalized outcome of one execution, with a read-only
// snapshot of the ledger.
type Result struct {
	ExitCode   int
	Status     Status
	Signal     string // signal name when Status is ABORTED
	Events     []ledger.Event
	StdoutTail []string
	StderrTail []string
}

// Runner runs a single child process. Each invocation is single-flight;
// a Runner holds no state across Run calls.
type Runner struct {
	View         config.ViewMode
	SnippetLines int

	// Echo destinations for the child's streams; default to the
	// parent's stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Run spawns argv and blocks until the child terminates and both stream
// readers report EOF. The returned error is non-nil only for tool
// failures (spawn error, reader IO error); a child that exits non-zero
// is reported through Result.
func (r *Runner) Run(argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, exitcode.New(exitcode.Usage, "empty command")
	}

	outW := r.Stdout
	if outW == nil {
		outW = os.Stdout
	}
	errW := r.Stderr
	if errW == nil {
		errW = os.Stderr
	}

	led := ledger.New()
	led.Append(ledger.Meta, fmt.Sprintf("safe-run start: cmd=\"%s\"", ledger.CanonicalCommand(argv)))

	cmd := exec.Command(argv[0], argv[1:]...)
	configureProc(cmd)
	cmd.Stdin = os.Stdin

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}

	// Signal registration is scoped to this execution: installed after
	// the pipes exist, removed before returning.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	outTail := &tailBuffer{max: r.SnippetLines}
	errTail := &tailBuffer{max: r.SnippetLines}

	var g errgroup.Group
	g.Go(func() error { return r.drain(stdoutPipe, ledger.Stdout, outW, led, outTail) })
	g.Go(func() error { return r.drain(stderrPipe, ledger.Stderr, errW, led, errTail) })

	readersDone := make(chan error, 1)
	go func() { readersDone <- g.Wait() }()

	// Block on reader EOF, not on the child: this is what guarantees no
	// output event can ever follow the exit META event. A signal
	// interrupts the wait cooperatively and tears the child down; the
	// readers then drain to EOF on their own.
	var got os.Signal
	var readErr error
	select {
	case sig := <-sigCh:
		got = sig
		terminateProc(cmd)
		readErr = <-readersDone
	case readErr = <-readersDone:
		// A signal may still have arrived while the readers finished.
		select {
		case sig := <-sigCh:
			got = sig
			terminateProc(cmd)
		default:
		}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("wait for %s: %w", argv[0], waitErr)
		}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read child output: %w", readErr)
	}

	res := &Result{
		StdoutTail: outTail.lines,
		StderrTail: errTail.lines,
	}

	if got != nil {
		res.Status = StatusAborted
		res.Signal, res.ExitCode = translateSignal(got)
		led.Append(ledger.Meta, fmt.Sprintf("safe-run aborted: signal=%s code=%d", res.Signal, res.ExitCode))
	} else {
		cause := Cause{Kind: CauseNormal, Code: 1}
		if cmd.ProcessState != nil {
			cause = causeFromState(cmd.ProcessState)
		}
		res.ExitCode = cause.ExitCode()
		led.Append(ledger.Meta, fmt.Sprintf("safe-run exit: code=%d", res.ExitCode))
		if res.ExitCode == 0 {
			res.Status = StatusDone
		} else {
			res.Status = StatusFail
		}
	}

	res.Events = led.Snapshot()
	return res, nil
}

// drain reads one pipe line by line, echoing each observed unit and
// appending it to the ledger. Reading stops only at EOF, so the pipe's
// own buffer bounds memory between reads; nothing is dropped or
// reordered. An unterminated final line is still one event, verbatim.
func (r *Runner) drain(pipe io.Reader, stream ledger.Stream, echo io.Writer, led *ledger.Ledger, tail *tailBuffer) error {
	br := bufio.NewReader(pipe)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			text := strings.TrimRight(line, "\r\n")
			ev := led.Append(stream, text)
			if r.View == config.ViewMerged {
				fmt.Fprintln(echo, ledger.FormatMerged(ev))
			} else {
				io.WriteString(echo, line)
			}
			tail.add(text)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func translateSignal(sig os.Signal) (name string, code int) {
	if sig == syscall.SIGTERM {
		return "SIGTERM", exitcode.SigTerm
	}
	return "SIGINT", exitcode.SigInt
}

// tailBuffer keeps the last max lines for the failure snippet.
type tailBuffer struct {
	max   int
	lines []string
}

func (t *tailBuffer) add(s string) {
	if t.max <= 0 {
		return
	}
	t.lines = append(t.lines, s)
	if len(t.lines) > t.max {
		t.lines = t.lines[1:]
	}
}
