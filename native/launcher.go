package native

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultLibrary = "./libschedule.so"
	DefaultSymbol  = "scheduler_main"
)

var (
	ErrNoProgram         = errors.New("native: no scheduler arguments given")
	ErrNativeUnavailable = errors.New("native: built without cgo, cannot load scheduler library")
)

// LoadError reports a scheduler library or entry point that could not be resolved.
type LoadError struct {
	Library string
	Symbol  string
	Reason  string
}

func (e *LoadError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("native: load %s: %s", e.Library, e.Reason)
	}
	return fmt.Sprintf("native: resolve %s in %s: %s", e.Symbol, e.Library, e.Reason)
}

// Launcher loads the scheduler library and hands control to its entry point:
//
//	int scheduler_main(char *argv[], int32_t (*predict)(int64_t, int64_t, int64_t, int64_t, int64_t, int32_t));
//
// Run blocks until the entry point returns; its result is the exit code.
type Launcher struct {
	Library string
	Symbol  string
}

// NewLauncher returns a Launcher, using DefaultLibrary and DefaultSymbol for
// empty arguments.
func NewLauncher(library, symbol string) *Launcher {
	if library == "" {
		library = DefaultLibrary
	}
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Launcher{Library: library, Symbol: symbol}
}

// schedulerArgs validates the argument vector forwarded to the scheduler.
// The arguments are passed verbatim; argv[0] is the program it will trace.
func schedulerArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoProgram
	}
	for i, arg := range args {
		if strings.IndexByte(arg, 0) >= 0 {
			return nil, fmt.Errorf("native: argument %d contains a NUL byte", i)
		}
	}
	return append([]string(nil), args...), nil
}
