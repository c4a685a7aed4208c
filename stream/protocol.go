// Package stream serves phase classification over a line protocol: one
// "pmc1,pmc2,pmc3,pmc4,pmc5,clusterId" request per line, one decimal label
// per response line.
package stream

import (
	"fmt"
	"strconv"
	"strings"

	"phasebridge/ml"
)

// ErrorMarker prefixes the response written for a rejected line when the
// server runs with SkipAndReport.
const ErrorMarker = "ERR"

// Policy decides what happens to a line that cannot be classified.
type Policy int

const (
	// FailFast stops serving at the first bad line and reports the error.
	FailFast Policy = iota
	// SkipAndReport answers the bad line with an ErrorMarker line and continues.
	SkipAndReport
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail"
	case SkipAndReport:
		return "skip"
	default:
		return "Policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePolicy accepts fail, fail-fast, skip or skip-and-report. The empty
// string means FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "fail", "fail-fast":
		return FailFast, nil
	case "skip", "skip-and-report":
		return SkipAndReport, nil
	default:
		return 0, fmt.Errorf("unknown malformed-line policy %q (want fail or skip)", s)
	}
}

// FormatSample renders a sample as a request line without the terminator.
func FormatSample(s ml.RawSample) string {
	buf := make([]byte, 0, 64)
	for i, v := range s.Fields() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, v, 10)
	}
	return string(buf)
}

// FormatLabel renders a label as a response line without the terminator.
func FormatLabel(label ml.PhaseLabel) string {
	return strconv.FormatInt(int64(label), 10)
}

func formatError(err error) string {
	return ErrorMarker + " " + strings.ReplaceAll(err.Error(), "\n", " ")
}

// RemoteError is an ErrorMarker response from the predictor.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string { return "predictor rejected sample: " + e.Reason }

// ParseResponse decodes one response line.
func ParseResponse(line string) (ml.PhaseLabel, error) {
	if line == ErrorMarker || strings.HasPrefix(line, ErrorMarker+" ") {
		return 0, &RemoteError{Reason: strings.TrimSpace(strings.TrimPrefix(line, ErrorMarker))}
	}
	v, err := strconv.ParseInt(line, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid response %q: %w", line, err)
	}
	return ml.PhaseLabel(v), nil
}
