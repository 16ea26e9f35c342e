package loop

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/log"
)

// WatchSignals turns SIGINT and SIGTERM into loop control. The first signal
// sets interrupt so the loop stops after the current iteration; the second
// calls cancel, which kills the running agent. The returned function stops
// watching.
func WatchSignals(ctx context.Context, cancel context.CancelFunc, interrupt *atomic.Bool, logger *log.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		watch(ctx, sigs, cancel, interrupt, logger)
		close(done)
	}()

	return func() {
		signal.Stop(sigs)
		close(sigs)
		<-done
	}
}

func watch(ctx context.Context, sigs <-chan os.Signal, cancel context.CancelFunc, interrupt *atomic.Bool, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			if interrupt.CompareAndSwap(false, true) {
				if logger != nil {
					logger.Warn("Interrupt received, finishing current iteration (repeat to stop now)", "signal", sig)
				}
				continue
			}
			if logger != nil {
				logger.Warn("Second interrupt, stopping now", "signal", sig)
			}
			cancel()
			return
		}
	}
}
