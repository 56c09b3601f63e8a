package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	perr "peppolsync/internal/platform/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and maps the outcome to a process exit code
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := guard(func() error { return root.ExecuteContext(ctx) })
	a.close()
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeInterrupted) {
			fmt.Fprintln(root.ErrOrStderr(), "interrupted")
		} else {
			fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		}
	}
	return perr.ExitCode(err)
}

// guard turns a panic escaping fn into a Panic-coded error so the process still
// closes the run log and exits with a status
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("panic: %v", r)
		}
	}()
	return fn()
}
