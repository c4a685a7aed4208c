package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phasebridge/db"
	"phasebridge/monitoring"
	"phasebridge/stream"
)

func newStreamCmd(a *app) *cobra.Command {
	var onMalformed, journal string
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Answer pmc1,pmc2,pmc3,pmc4,pmc5,clusterId lines on stdin with phase labels on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("on-malformed") {
				a.config.Stream.OnMalformed = onMalformed
			}
			if cmd.Flags().Changed("journal") {
				a.config.Stream.Journal = journal
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runStream(ctx, cmd)
		},
	}
	cmd.Flags().StringVar(&onMalformed, "on-malformed", "fail", "malformed line policy: fail or skip")
	cmd.Flags().StringVar(&journal, "journal", "", "record served samples in this sqlite database")
	return cmd
}

func (a *app) runStream(ctx context.Context, cmd *cobra.Command) error {
	policy, err := stream.ParsePolicy(a.config.Stream.OnMalformed)
	if err != nil {
		return err
	}
	session, err := a.loadSession()
	if err != nil {
		return err
	}

	counters := monitoring.NewCounters()
	stopStats, err := a.startStats(counters)
	if err != nil {
		return err
	}
	defer stopStats()

	opts := []stream.Option{
		stream.WithPolicy(policy),
		stream.WithCounters(counters),
		stream.WithLogger(a.logger),
	}
	if path := a.config.Stream.Journal; path != "" {
		journal, err := db.Open(path)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, stream.WithJournal(journal))
		a.logger.Info("journaling samples", zap.String("path", path))
	}

	a.logger.Debug("serving", zap.Stringer("policy", policy))
	err = stream.NewServer(session, opts...).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}
