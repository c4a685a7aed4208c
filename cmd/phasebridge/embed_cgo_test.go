//go:build cgo

package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The scheduler exits 40 plus the label of one sample, or 3 when its argv
// is not what the command line forwarded.
const exitingScheduler = `
#include <stddef.h>
#include <stdint.h>
#include <string.h>

typedef int32_t (*predict_phase)(int64_t, int64_t, int64_t, int64_t, int64_t, int32_t);

int scheduler_main(char *argv[], predict_phase cb) {
	if (argv[0] == NULL || argv[1] == NULL || argv[2] != NULL ||
	    strcmp(argv[0], "./workload") != 0 || strcmp(argv[1], "--fast") != 0)
		return 3;
	return 40 + cb(100, 200, 50, 10, 5, 2);
}
`

func buildScheduler(t *testing.T, source string) string {
	t.Helper()
	compiler := os.Getenv("CC")
	if compiler == "" {
		for _, name := range []string{"cc", "gcc", "clang"} {
			if path, err := exec.LookPath(name); err == nil {
				compiler = path
				break
			}
		}
	}
	if compiler == "" {
		t.Skip("no C compiler found")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "scheduler.c")
	require.NoError(t, os.WriteFile(src, []byte(source), 0o600))
	library := filepath.Join(dir, "libschedule.so")
	out, err := exec.Command(compiler, "-shared", "-fPIC", "-o", library, src).CombinedOutput()
	require.NoError(t, err, "compile scheduler: %s", out)
	return library
}

// The callback is installed once per process, so embed runs in a child.
func TestEmbedExitsWithSchedulerCode(t *testing.T) {
	library := buildScheduler(t, exitingScheduler)
	cfg := writeConfig(t, "")
	exe, err := os.Executable()
	require.NoError(t, err)

	cmd := exec.Command(exe, "--config", cfg, "embed", "--library", library, "./workload", "--fast")
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	err = cmd.Run()

	var exit *exec.ExitError
	require.True(t, errors.As(err, &exit), "%v", err)
	// pmc3 of 50 is phase 1.
	assert.Equal(t, 41, exit.ExitCode())
}
