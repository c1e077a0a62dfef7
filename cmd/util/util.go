package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/marupanda/sync/pkg/errors"
)

// Mocked out for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError prints the error and exits. Friendly errors are printed
// as-is. Other errors are printed with their full context.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintf(stderr, "ERROR: %s\n", errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs the stack trace of a panic before letting it crash the
// process. It should be deferred at the top of main and of every goroutine.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Error("Panic")
		panic(r)
	}
}
