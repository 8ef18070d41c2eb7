package spio

import (
	"fmt"
	"os"
	"time"
)

// panicOn converts a should-never-happen error into a panic. It is used
// only at points where the error return would otherwise be silently
// discarded and the caller has no sane recovery (e.g. crypto/rand failing,
// os.MkdirAll failing on a directory we just chose ourselves).
func panicOn(err error) {
	if err != nil {
		panic(err)
	}
}

// assertf panics with a formatted message when cond is false. Used to
// enforce the package's internal invariants (§8 of the design: at most one
// provider per AIO, finish called exactly once, etc) where a violation is a
// programming error in this package, not a runtime condition callers can
// recover from.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

var verbose = os.Getenv("SPIO_VERBOSE") != ""

// vv is a cheap, gated debug trace. It costs nothing when SPIO_VERBOSE is
// unset beyond the initial env lookup.
func vv(format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "# %s "+format+"\n",
		append([]any{time.Now().Format("15:04:05.000000")}, args...)...)
}
