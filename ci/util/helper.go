package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marupanda/sync/pkg/errors"
)

// TestHelper contains methods commonly used during integration tests.
type TestHelper struct {
	// Binary is the path to the dirmirror binary under test.
	Binary string
}

// NewTestHelper creates a new TestHelper.
func NewTestHelper(binary string) (*TestHelper, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, errors.WithContext(err, "find binary")
	}
	return &TestHelper{Binary: path}, nil
}

// Start starts dirmirror with the given arguments. It returns a reader for
// the stdout output, a channel for obtaining any errors after starting the
// command, and any errors from starting the command.
func (helper *TestHelper) Start(ctx context.Context, args ...string) (
	io.Reader, chan error, error) {

	cmd := exec.Command(helper.Binary, args...)

	stdoutReader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	errChan := make(chan error)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errChan <- errors.WithContext(err, "kill")
				return
			}
			<-waitErr
		case err := <-waitErr:
			errChan <- fmt.Errorf("crashed (%s): stderr: %s", err, stderr)
		}
	}()
	return stdoutReader, errChan, nil
}

// Run runs dirmirror with the given arguments, and returns its stdout.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, helper.Binary, args...).Output()
}

// Mirror starts mirroring `source` into `destination`, and waits until the
// destination has been created.
func (helper *TestHelper) Mirror(ctx context.Context, source, destination string,
	args ...string) (chan error, error) {

	log.WithField("source", source).Info("Starting dirmirror")
	args = append([]string{source, destination}, args...)
	stdout, cmdErr, err := helper.Start(ctx, args...)
	if err != nil {
		return nil, errors.WithContext(err, "start")
	}

	// Drain stdout so that the process never blocks on logging.
	go io.Copy(io.Discard, stdout)

	waitCtx, cancelWait := context.WithTimeout(ctx, time.Minute)
	defer cancelWait()

	created := TestWithRetry(waitCtx, nil, func() bool {
		_, err := os.Stat(destination)
		return err == nil
	})

	select {
	case err := <-cmdErr:
		return nil, errors.WithContext(err, "dirmirror crashed")
	default:
	}

	if !created {
		return nil, errors.New("destination was never created")
	}
	return cmdErr, nil
}

// WaitUntilSynced blocks until `isSynced` returns true, or the context
// expires.
func (helper *TestHelper) WaitUntilSynced(ctx context.Context, isSynced func() error) error {
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var lastErr error
	synced := TestWithRetry(waitCtx, nil, func() bool {
		lastErr = isSynced()
		return lastErr == nil
	})
	if !synced {
		return errors.WithContext(lastErr, "never synced")
	}
	return nil
}

// TestWithRetry runs `test` until it succeeds, with exponential backoff.
func TestWithRetry(ctx context.Context, trigger chan struct{}, test func() bool) bool {
	maxSleepTime := 5 * time.Second
	sleepTime := 100 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return test()
		case <-time.After(sleepTime):
			sleepTime *= 2
			if sleepTime > maxSleepTime {
				sleepTime = maxSleepTime
			}
		case <-trigger:
		}

		if test() {
			return true
		}
	}
}
