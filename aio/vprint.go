package aio

import (
	"fmt"
	"os"
)

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

var verbose = os.Getenv("SPIO_VERBOSE") != ""

func vv(format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "# aio "+format+"\n", args...)
}
