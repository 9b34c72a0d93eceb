// Command storysync keeps an issue tracker, per-story notebooks and an
// outline diagram in step: it fans parent stories out into child issues,
// links outline nodes to issues, annotates progress and maintains the
// notebooks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "storysync:", err)
		os.Exit(exitCode(err))
	}
}
