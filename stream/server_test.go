package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasebridge/ml"
	"phasebridge/monitoring"
)

func serve(t *testing.T, s *Server, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := s.Serve(context.Background(), strings.NewReader(input), &out)
	return out.String(), err
}

func TestServeExampleScenario(t *testing.T) {
	out, err := serve(t, NewServer(testSession()), "100,200,50,10,5,2\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestServePairsEveryLineInOrder(t *testing.T) {
	var input strings.Builder
	var want []string
	for i := int64(0); i < 50; i++ {
		input.WriteString(FormatSample(ml.RawSample{PMC1: i, PMC2: 2 * i, PMC3: 3, PMC4: 4, PMC5: 5, ClusterID: i % 8}) + "\n")
		want = append(want, FormatLabel(ml.PhaseLabel((i+2*i+3+4+5+i%8)%3)))
	}

	out, err := serve(t, NewServer(testSession()), input.String())
	require.NoError(t, err)
	assert.Equal(t, want, strings.Split(strings.TrimSuffix(out, "\n"), "\n"))
}

func TestServeLastLineWithoutTerminator(t *testing.T) {
	out, err := serve(t, NewServer(testSession()), "1,1,1,1,1,1\n0,0,0,0,0,2")
	require.NoError(t, err)
	assert.Equal(t, "0\n2\n", out)
}

func TestServeCleanEOF(t *testing.T) {
	counters := monitoring.NewCounters()
	out, err := serve(t, NewServer(testSession(), WithCounters(counters)), "")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, counters.Snapshot().Requests)
}

func TestServeFailFastOnMalformed(t *testing.T) {
	counters := monitoring.NewCounters()
	s := NewServer(testSession(), WithCounters(counters))

	out, err := serve(t, s, "1,2,3,4,5,6\na,b,c\n1,2,3,4,5,6\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ml.ErrMalformedSample))
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, "0\n", out, "no label for the bad line and nothing after it")
	assert.Equal(t, uint64(1), counters.Snapshot().Malformed)
}

func TestServeSkipAndReportOnMalformed(t *testing.T) {
	counters := monitoring.NewCounters()
	s := NewServer(testSession(), WithPolicy(SkipAndReport), WithCounters(counters))

	out, err := serve(t, s, "1,2,3,4,5,6\na,b,c\n1,2,3,4,5,7\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], ErrorMarker+" "), lines[1])
	assert.Equal(t, "1", lines[2])

	snap := counters.Snapshot()
	assert.Equal(t, uint64(3), snap.Requests)
	assert.Equal(t, uint64(1), snap.Malformed)
}

func TestServeClassificationFailure(t *testing.T) {
	failing := predictorFunc(func(ml.RawSample) (ml.PhaseLabel, error) {
		return 0, &ml.ClassificationError{Reason: "unavailable"}
	})

	out, err := serve(t, NewServer(failing), "1,2,3,4,5,6\n")
	assert.True(t, errors.Is(err, ml.ErrClassification))
	assert.Empty(t, out)

	counters := monitoring.NewCounters()
	out, err = serve(t, NewServer(failing, WithPolicy(SkipAndReport), WithCounters(counters)), "1,2,3,4,5,6\n")
	require.NoError(t, err)
	assert.Equal(t, "ERR classification failed: unavailable\n", out)
	assert.Equal(t, uint64(1), counters.Snapshot().Failures)
}

func TestServeJournal(t *testing.T) {
	journal := &memoryJournal{}
	s := NewServer(testSession(), WithPolicy(SkipAndReport), WithJournal(journal))

	_, err := serve(t, s, "100,200,50,10,5,2\nbad\n0,0,0,0,0,1\n")
	require.NoError(t, err)

	require.Len(t, journal.samples, 2, "malformed lines have no sample to record")
	assert.Equal(t, ml.RawSample{PMC1: 100, PMC2: 200, PMC3: 50, PMC4: 10, PMC5: 5, ClusterID: 2}, journal.samples[0])
	assert.Equal(t, []ml.PhaseLabel{1, 1}, journal.labels)
}

func TestServeJournalFailureDoesNotChangeResponse(t *testing.T) {
	s := NewServer(testSession(), WithJournal(&memoryJournal{fail: true}))
	out, err := serve(t, s, "100,200,50,10,5,2\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewServer(testSession()).Serve(ctx, strings.NewReader("1,2,3,4,5,6\n"), &out)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, out.String())
}

func TestServeOverlongLineFollowsPolicy(t *testing.T) {
	long := strings.Repeat("9", maxLineSize+10)
	input := long + "\n100,200,50,10,5,2\n"

	counters := monitoring.NewCounters()
	out, err := serve(t, NewServer(testSession(), WithPolicy(SkipAndReport), WithCounters(counters)), input)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], ErrorMarker+" "), lines[0])
	assert.Equal(t, "1", lines[1], "the server resumes after the long line")
	assert.Equal(t, uint64(1), counters.Snapshot().Malformed)

	out, err = serve(t, NewServer(testSession()), input)
	assert.True(t, errors.Is(err, ml.ErrMalformedSample))
	assert.Contains(t, err.Error(), "line 1")
	assert.Empty(t, out)
}

func TestServeOverlongLastLine(t *testing.T) {
	out, err := serve(t, NewServer(testSession(), WithPolicy(SkipAndReport)), "1,1,1,1,1,1\n"+strings.Repeat("x", 2*maxLineSize))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], ErrorMarker+" "), lines[1])
}

func TestServeReturnsWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(testSession()).Serve(ctx, pr, io.Discard)
	}()

	_, err := pw.Write([]byte("1,2,3,4,5,6\n"))
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
