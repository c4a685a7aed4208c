package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"phasebridge/ml"
)

// Client drives a predictor that speaks the line protocol, either over pipes
// supplied by the caller or as a child process started by StartClient.
type Client struct {
	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	scanner *bufio.Scanner
	wait    func() error
}

// NewClient speaks the protocol over r and w. If w is an io.Closer, Close
// closes it.
func NewClient(r io.Reader, w io.Writer) *Client {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxLineSize)
	c := &Client{w: bufio.NewWriter(w), scanner: scanner}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// StartClient launches the predictor at path with args. The child's stderr is
// forwarded to ours.
func StartClient(ctx context.Context, path string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start predictor %s: %w", path, err)
	}

	c := NewClient(stdout, stdin)
	c.wait = cmd.Wait
	return c, nil
}

// Classify sends one request and waits for its response.
func (c *Client) Classify(raw ml.RawSample) (ml.PhaseLabel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.WriteString(FormatSample(raw) + "\n"); err != nil {
		return 0, err
	}
	if err := c.w.Flush(); err != nil {
		return 0, err
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return ParseResponse(c.scanner.Text())
}

// Close ends the request stream and, for a child process, waits for it to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.closer != nil {
		err = c.closer.Close()
	}
	if c.wait != nil {
		if werr := c.wait(); werr != nil {
			return werr
		}
	}
	return err
}
