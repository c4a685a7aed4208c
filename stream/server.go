package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"phasebridge/ml"
	"phasebridge/monitoring"
)

const maxLineSize = 64 * 1024

// Predictor is the classification capability the server exposes.
type Predictor interface {
	Classify(raw ml.RawSample) (ml.PhaseLabel, error)
}

// Journal records every parsed sample with its outcome.
type Journal interface {
	Record(sample ml.RawSample, label ml.PhaseLabel, classifyErr error) error
}

// Server answers line protocol requests with a Predictor.
type Server struct {
	predictor Predictor
	policy    Policy
	journal   Journal
	counters  *monitoring.Counters
	logger    *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithPolicy(p Policy) Option { return func(s *Server) { s.policy = p } }

func WithJournal(j Journal) Option { return func(s *Server) { s.journal = j } }

func WithCounters(c *monitoring.Counters) Option { return func(s *Server) { s.counters = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// NewServer returns a FailFast server without a journal unless opts say otherwise.
func NewServer(p Predictor, opts ...Option) *Server {
	s := &Server{predictor: p, policy: FailFast}
	for _, opt := range opts {
		opt(s)
	}
	if s.counters == nil {
		s.counters = monitoring.NewCounters()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Serve answers requests from r on w until r reaches end of input, which is
// the only normal termination and returns nil. Each response is flushed
// before the next line is read. With FailFast the first bad line ends the
// loop with its error and no response is written for it. A line longer than
// maxLineSize is malformed and the server resumes at the next newline.
// Serve returns ctx.Err() as soon as ctx is done, even while waiting for
// input; the pending read is abandoned.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	out := bufio.NewWriter(w)

	next := make(chan struct{}, 1)
	lines := make(chan inputLine)
	stop := make(chan struct{})
	defer close(stop)
	go readLines(bufio.NewReaderSize(r, maxLineSize), next, lines, stop)

	for lineNo := 1; ; lineNo++ {
		next <- struct{}{}
		var in inputLine
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in = <-lines:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if in.err == io.EOF {
			break
		}
		if in.err != nil {
			return fmt.Errorf("read requests: %w", in.err)
		}
		s.counters.RecordRequest()

		var label ml.PhaseLabel
		var err error
		if in.tooLong {
			err = &ml.MalformedSampleError{Line: in.text + "...", Field: -1, Reason: "line exceeds " + strconv.Itoa(maxLineSize) + " bytes"}
		} else {
			label, err = s.handle(in.text)
		}

		var response string
		if err != nil {
			if errors.Is(err, ml.ErrMalformedSample) {
				s.counters.RecordMalformed()
			} else {
				s.counters.RecordFailure()
			}
			if s.policy == FailFast {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			s.logger.Warn("rejected sample", zap.Int("line", lineNo), zap.Error(err))
			response = formatError(err)
		} else {
			response = FormatLabel(label)
		}

		if _, err := out.WriteString(response); err != nil {
			return err
		}
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}

	snap := s.counters.Snapshot()
	s.logger.Info("input closed",
		zap.Uint64("requests", snap.Requests),
		zap.Uint64("malformed", snap.Malformed),
		zap.Uint64("failures", snap.Failures),
		zap.Duration("uptime", snap.Uptime))
	return nil
}

// inputLine is one request line. When tooLong is set, text holds only the
// start of the line.
type inputLine struct {
	text    string
	tooLong bool
	err     error
}

// readLines reads one line per token received on next and stops after the
// first read error or when stop is closed.
func readLines(br *bufio.Reader, next <-chan struct{}, lines chan<- inputLine, stop <-chan struct{}) {
	for {
		select {
		case <-next:
		case <-stop:
			return
		}
		in := readLine(br)
		select {
		case lines <- in:
		case <-stop:
			return
		}
		if in.err != nil {
			return
		}
	}
}

func readLine(br *bufio.Reader) inputLine {
	line, isPrefix, err := br.ReadLine()
	if err != nil {
		return inputLine{err: err}
	}
	if !isPrefix {
		return inputLine{text: string(line)}
	}
	head := string(line[:min(len(line), 32)])
	for isPrefix {
		_, isPrefix, err = br.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inputLine{err: err}
		}
	}
	return inputLine{text: head, tooLong: true}
}

func (s *Server) handle(line string) (ml.PhaseLabel, error) {
	sample, err := ml.ParseSample(line)
	if err != nil {
		return 0, err
	}
	label, err := s.predictor.Classify(sample)
	if s.journal != nil {
		if jerr := s.journal.Record(sample, label, err); jerr != nil {
			s.logger.Warn("journal write failed", zap.Error(jerr))
		}
	}
	return label, err
}
