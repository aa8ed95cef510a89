package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitOK              = 0
	exitError           = 1
	exitExecutionFailed = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := Execute(ctx)
	cancel()

	if err == nil {
		os.Exit(exitOK)
	}
	if errors.Is(err, errExecutionFailed) {
		os.Exit(exitExecutionFailed)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}
