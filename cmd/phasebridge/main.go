// Command phasebridge classifies PMC samples into execution phases for a
// native scheduler, either in-process through a callback or over stdin/stdout.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"phasebridge/logging"
	"phasebridge/ml"
	"phasebridge/monitoring"
)

// exitError carries a process exit code without an extra diagnostic.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type app struct {
	configPath string
	verbose    bool

	config *Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "phasebridge",
		Short: "Execution-phase classifier bridge for PMC-driven schedulers",
		Long: `phasebridge turns a sample of five performance counters plus a cluster id
into a phase label using a fitted scaler and classifier.

The same classification is served two ways:
  embed   load the native scheduler library and answer its callback
  stream  answer "pmc1,pmc2,pmc3,pmc4,pmc5,clusterId" lines on stdin`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			explicit := cmd.Flags().Changed("config")
			if path == "" {
				path = defaultConfigPath
			}
			config, err := loadConfig(path, explicit)
			if err != nil {
				return err
			}
			if a.verbose {
				config.Log.Level = zapcore.DebugLevel.String()
			}
			logger, err := logging.New(config.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.config = config
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the yaml config (default "+defaultConfigPath+" if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newEmbedCmd(a), newStreamCmd(a), newVerifyCmd(a))
	return root
}

// loadSession loads the artifacts; failure is fatal before any I/O.
func (a *app) loadSession() (*ml.Session, error) {
	session, err := ml.LoadSession(a.config.Artifacts)
	if err != nil {
		return nil, err
	}
	a.logger.Info("prediction session loaded",
		zap.String("preprocessor", a.config.Artifacts.PreprocessorKind),
		zap.String("preprocessor_path", a.config.Artifacts.PreprocessorPath),
		zap.String("classifier", a.config.Artifacts.ClassifierKind),
		zap.String("classifier_path", a.config.Artifacts.ClassifierPath))
	return session, nil
}

// startStats serves counters when monitoring.addr is set. The returned stop
// function is always safe to call.
func (a *app) startStats(counters *monitoring.Counters) (func(), error) {
	if a.config.Monitoring.Addr == "" {
		return func() {}, nil
	}
	stats := monitoring.NewStatsServer(a.config.Monitoring.Addr, counters, a.config.Monitoring.Interval, a.logger)
	if err := stats.Start(); err != nil {
		return nil, err
	}
	return func() {
		if err := stats.Stop(); err != nil {
			a.logger.Warn("stopping stats server", zap.Error(err))
		}
	}, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(stderr, "phasebridge:", err)
	return 1
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
