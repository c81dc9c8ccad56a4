package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// SetupGracefulShutdown cancels on the first SIGINT or SIGTERM. A second
// signal exits immediately.
func SetupGracefulShutdown(cancel context.CancelFunc, log zerolog.Logger) {
	watchSignals(cancel, log, func() { os.Exit(130) }, syscall.SIGINT, syscall.SIGTERM)
}

func watchSignals(cancel context.CancelFunc, log zerolog.Logger, force func(), sigs ...os.Signal) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, sigs...)
	go func() {
		s := <-sigCh
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		s = <-sigCh
		log.Warn().Str("signal", s.String()).Msg("forced exit")
		force()
	}()
}
