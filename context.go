package xwin

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// InterruptibleContext returns a context which is canceled when the
// process is interrupted (SIGINT or SIGTERM). This is the single stop
// signal observable by all workers (spec.md §5 Cancellation): the
// scheduler in internal/work fails jobs not yet started with ctx.Err(),
// and an in-flight job fails with whatever error its own I/O returns once
// ctx is done. Neither is converted to *Cancelled.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// A second signal terminates immediately, useful if cleanup hangs.
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}
