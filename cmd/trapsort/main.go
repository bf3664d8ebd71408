package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trapsort/internal/fault"
	"trapsort/internal/tablestore"
)

// Exit codes let wrapper scripts tell a broken setup from a data problem.
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitIntegrity
	exitLocked
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "trapsort:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, fault.ErrConfiguration):
		return exitConfig
	case errors.Is(err, tablestore.ErrLocked):
		return exitLocked
	case errors.Is(err, fault.ErrIntegrity), errors.Is(err, fault.ErrSchema), errors.Is(err, fault.ErrPolicy):
		return exitIntegrity
	default:
		return exitFailure
	}
}
