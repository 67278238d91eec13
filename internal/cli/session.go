package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// withSession opens a session for the command, runs fn and closes the
// session afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSessionFn(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Error("closing session: %v", cerr)
		}
	}()

	return fn(ctx, s)
}

// initialize runs the coordinator's startup discovery. Failures are reported
// as warnings since every step is optional.
func initialize(ctx context.Context, cmd *cobra.Command, s *Session) {
	if err := s.Coordinator.Initialize(ctx); err != nil {
		warnf(cmd, "%v", err)
	}
}
