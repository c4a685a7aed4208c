package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phasebridge/db"
	"phasebridge/ml"
	"phasebridge/monitoring"
	"phasebridge/native"
	"phasebridge/stream"
)

type verifyOptions struct {
	fromJournal string
	predictor   string
}

func newVerifyCmd(a *app) *cobra.Command {
	var opts verifyOptions
	cmd := &cobra.Command{
		Use:   "verify [samples-file]",
		Short: "Check that the embedded callback and a streaming predictor agree",
		Long: `verify classifies every sample twice: in-process through the native
callback body, and through a "phasebridge stream" child process. Any
disagreement is printed and the command exits 1.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.fromJournal != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var samples []ml.RawSample
			var err error
			if opts.fromJournal != "" {
				samples, err = journalSamples(opts.fromJournal)
			} else {
				samples, err = a.fileSamples(args[0])
			}
			if err != nil {
				return err
			}
			return a.runVerify(cmd.Context(), cmd.OutOrStdout(), opts, samples)
		},
	}
	cmd.Flags().StringVar(&opts.fromJournal, "from-journal", "", "read samples from a sqlite journal instead of a file")
	cmd.Flags().StringVar(&opts.predictor, "predictor", "", "streaming predictor executable (default: this binary)")
	return cmd
}

func (a *app) fileSamples(path string) ([]ml.RawSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var samples []ml.RawSample
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if scanner.Text() == "" {
			continue
		}
		sample, err := ml.ParseSample(scanner.Text())
		if err != nil {
			a.logger.Warn("skipping sample", zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return samples, nil
}

func journalSamples(path string) ([]ml.RawSample, error) {
	journal, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	defer journal.Close()

	entries, err := journal.Entries(0)
	if err != nil {
		return nil, err
	}
	samples := make([]ml.RawSample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, e.Sample)
	}
	return samples, nil
}

// predictorArgs runs the child with the same config, skipping bad lines so
// every request gets exactly one response, and without a journal.
func (a *app) predictorArgs() []string {
	var args []string
	if a.configPath != "" {
		args = append(args, "--config", a.configPath)
	}
	return append(args, "stream", "--on-malformed", "skip", "--journal=")
}

func (a *app) runVerify(ctx context.Context, out io.Writer, opts verifyOptions, samples []ml.RawSample) error {
	session, err := a.loadSession()
	if err != nil {
		return err
	}
	callback, err := native.NewCallback(session, *a.config.Native.Sentinel, monitoring.NewCounters())
	if err != nil {
		return err
	}

	path := opts.predictor
	if path == "" {
		if path, err = os.Executable(); err != nil {
			return err
		}
	}
	client, err := stream.StartClient(ctx, path, a.predictorArgs()...)
	if err != nil {
		return err
	}

	var checked, skipped, mismatches int
	for _, sample := range samples {
		if sample.ClusterID < math.MinInt32 || sample.ClusterID > math.MaxInt32 {
			a.logger.Warn("cluster id does not fit the callback", zap.Int64("cluster_id", sample.ClusterID))
			skipped++
			continue
		}
		embedded := callback.Predict(sample.PMC1, sample.PMC2, sample.PMC3, sample.PMC4, sample.PMC5, int32(sample.ClusterID))

		streamed, err := client.Classify(sample)
		var remote *stream.RemoteError
		switch {
		case errors.As(err, &remote):
			streamed = ml.PhaseLabel(callback.Sentinel())
		case err != nil:
			client.Close()
			return fmt.Errorf("streaming predictor: %w", err)
		}

		checked++
		if int32(streamed) != embedded {
			mismatches++
			fmt.Fprintf(out, "mismatch %s: embedded %d streamed %d\n", stream.FormatSample(sample), embedded, streamed)
		}
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("streaming predictor: %w", err)
	}

	fmt.Fprintf(out, "checked %d samples, %d mismatches, %d skipped\n", checked, mismatches, skipped)
	if first := callback.FirstFailure(); first != nil {
		a.logger.Info("embedded path returned the sentinel", zap.Error(first))
	}
	if mismatches > 0 {
		return fmt.Errorf("%d of %d samples disagree", mismatches, checked)
	}
	return nil
}
