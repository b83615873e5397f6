package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpataki/saferun/internal/archive"
	"github.com/mpataki/saferun/internal/artifact"
	"github.com/mpataki/saferun/internal/checker"
	"github.com/mpataki/saferun/internal/config"
	"github.com/mpataki/saferun/internal/exitcode"
	"github.com/mpataki/saferun/internal/runner"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "saferun",
		Short:         "Execute commands with an event ledger and failure artifacts",
		Long:          "Saferun runs commands for automated coding agents: it captures an ordered event ledger, writes diagnostic logs on failure, verifies command availability, and builds collision-safe archives.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newArchiveCommand())

	if err := rootCmd.Execute(); err != nil {
		var ee *exitcode.Error
		if errors.As(err, &ee) {
			if ee.Msg != "" {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", ee.Msg)
			}
			os.Exit(ee.Code)
		}
		// Anything cobra itself rejects is a usage error.
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(exitcode.Usage)
	}
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [--view ledger|merged] -- <command> [args...]",
		Short: "Run a command, logging a diagnostic artifact on failure",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return exitcode.New(exitcode.Failure, "%v", err)
			}

			if cmd.Flags().Changed("view") {
				viewFlag, _ := cmd.Flags().GetString("view")
				switch config.ViewMode(viewFlag) {
				case config.ViewLedger, config.ViewMerged:
					cfg.View = config.ViewMode(viewFlag)
				default:
					return exitcode.New(exitcode.Usage, "invalid view mode %q (want ledger or merged)", viewFlag)
				}
			}

			r := &runner.Runner{
				View:         cfg.View,
				SnippetLines: cfg.SnippetLines,
			}
			res, err := r.Run(args)
			if err != nil {
				var ee *exitcode.Error
				if errors.As(err, &ee) {
					return ee
				}
				if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
					return exitcode.New(exitcode.NotFound, "command not found: %s", args[0])
				}
				return exitcode.New(exitcode.Failure, "%v", err)
			}

			w := &artifact.Writer{Dir: cfg.LogDir}
			logPath, werr := w.WriteIfNeeded(time.Now(), os.Getpid(), res)
			if werr != nil {
				return exitcode.New(exitcode.Failure, "failed to write log file: %v", werr)
			}
			if logPath == "" {
				return nil
			}

			fmt.Fprintln(os.Stderr)
			if res.Status == runner.StatusAborted {
				fmt.Fprintf(os.Stderr, "SAFE-RUN: aborted (%s)\n", res.Signal)
			} else {
				fmt.Fprintf(os.Stderr, "SAFE-RUN: command failed (exit=%d)\n", res.ExitCode)
			}
			fmt.Fprintf(os.Stderr, "SAFE-RUN: log saved to: %s\n", logPath)

			if cfg.SnippetLines > 0 {
				printTail(cfg.SnippetLines, res.StdoutTail, res.StderrTail)
			}

			return exitcode.Silent(res.ExitCode)
		},
	}

	cmd.Flags().String("view", "", "terminal view mode: ledger (raw pass-through) or merged (annotated observed order)")
	// Stop flag parsing at the first non-flag token so the child's own
	// flags pass through untouched.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func printTail(lines int, stdoutTail, stderrTail []string) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "SAFE-RUN: STDOUT tail (last %d lines):\n", lines)
	for _, line := range stdoutTail {
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "SAFE-RUN: STDERR tail (last %d lines):\n", lines)
	for _, line := range stderrTail {
		fmt.Fprintln(os.Stderr, line)
	}
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <target> [--executable] [--repo-state]",
		Short: "Verify a command or environment without executing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return exitcode.New(exitcode.Failure, "%v", err)
			}

			executable, _ := cmd.Flags().GetBool("executable")
			repoState, _ := cmd.Flags().GetBool("repo-state")

			target := checker.Target{
				Name:        args[0],
				Executable:  executable,
				RepoState:   repoState,
				RepoMarkers: cfg.RepoMarkers,
				WorkDir:     ".",
			}

			resolved, err := checker.Evaluate(target)
			if err != nil {
				return err
			}

			fmt.Printf("OK: %s -> %s\n", checker.Describe(target), resolved)
			return nil
		},
	}

	cmd.Flags().Bool("executable", false, "also verify the executable bit")
	cmd.Flags().Bool("repo-state", false, "also verify repository markers are present")
	return cmd
}

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <src> <dest> [--format tar.gz|tar.bz2|zip] [--no-clobber]",
		Short: "Create a reproducible archive of a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return exitcode.New(exitcode.Failure, "%v", err)
			}

			noClobber, _ := cmd.Flags().GetBool("no-clobber")

			job := archive.Job{
				SourceDir: args[0],
				DestPath:  args[1],
				Strict:    noClobber || cfg.ArchiveStrict,
			}

			if cmd.Flags().Changed("format") {
				formatFlag, _ := cmd.Flags().GetString("format")
				format, err := archive.ParseFormat(formatFlag)
				if err != nil {
					return err
				}
				job.Format = format
			}

			final, err := archive.Build(job)
			if err != nil {
				return err
			}

			fmt.Printf("Archive created: %s\n", final)
			return nil
		},
	}

	cmd.Flags().String("format", "", "archive format (default: inferred from destination extension)")
	cmd.Flags().Bool("no-clobber", false, "fail on destination collision instead of auto-suffixing")
	return cmd
}
