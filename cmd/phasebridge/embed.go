package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phasebridge/monitoring"
	"phasebridge/native"
)

func newEmbedCmd(a *app) *cobra.Command {
	var library, symbol string
	cmd := &cobra.Command{
		Use:   "embed [--] <program> [args...]",
		Short: "Run the native scheduler in-process with the prediction callback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("library") {
				a.config.Native.Library = library
			}
			if cmd.Flags().Changed("symbol") {
				a.config.Native.Symbol = symbol
			}
			return a.runEmbed(args)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&library, "library", native.DefaultLibrary, "scheduler shared library")
	cmd.Flags().StringVar(&symbol, "symbol", native.DefaultSymbol, "scheduler entry point")
	return cmd
}

func (a *app) runEmbed(args []string) error {
	session, err := a.loadSession()
	if err != nil {
		return err
	}

	counters := monitoring.NewCounters()
	callback, err := native.NewCallback(session, *a.config.Native.Sentinel, counters)
	if err != nil {
		return err
	}
	if err := native.Install(callback); err != nil {
		return err
	}
	stopStats, err := a.startStats(counters)
	if err != nil {
		return err
	}
	defer stopStats()

	launcher := native.NewLauncher(a.config.Native.Library, a.config.Native.Symbol)
	a.logger.Info("starting scheduler",
		zap.String("library", launcher.Library),
		zap.String("symbol", launcher.Symbol),
		zap.Strings("args", args))

	code, err := launcher.Run(args)
	if err != nil {
		return fmt.Errorf("launch scheduler: %w", err)
	}

	stats := callback.Stats()
	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.Uint64("requests", stats.Requests),
		zap.Uint64("failures", stats.Failures),
		zap.Duration("uptime", stats.Uptime),
	}
	if first := callback.FirstFailure(); first != nil {
		fields = append(fields, zap.NamedError("first_failure", first))
		a.logger.Warn("scheduler exited; some predictions returned the sentinel", fields...)
	} else {
		a.logger.Info("scheduler exited", fields...)
	}

	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}
