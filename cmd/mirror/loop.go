package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/marupanda/sync/pkg/errors"
	"github.com/marupanda/sync/pkg/sync"
)

type syncer interface {
	Sync() (sync.Result, error)
	Snapshot() sync.Snapshot
}

// runner runs a pass every interval, or whenever the trigger fires. Passes
// never overlap.
type runner struct {
	syncer   syncer
	interval time.Duration
	clock    clockwork.Clock

	// trigger starts a pass early. It may be nil.
	trigger <-chan struct{}

	log log.FieldLogger

	lastVersion string
}

// Run blocks until the context is cancelled. Failed passes are logged and
// retried on the next interval.
func (r *runner) Run(ctx context.Context) {
	for {
		if err := r.syncOnce(); err != nil {
			r.log.WithError(err).Errorf("Sync failed. Will retry in %s.", r.interval)
		}

		timer := r.clock.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.trigger:
			timer.Stop()
		case <-timer.Chan():
		}
	}
}

func (r *runner) syncOnce() error {
	res, err := r.syncer.Sync()

	logFields := log.Fields{}
	if len(res.Copied) > 0 {
		logFields["copied"] = truncateSlice(res.Copied, 5)
	}
	if len(res.Removed) > 0 {
		logFields["removed"] = truncateSlice(res.Removed, 5)
	}
	if len(res.Failed) > 0 {
		logFields["failed"] = truncateSlice(res.Failed, 5)
	}
	if len(logFields) > 0 {
		r.log.WithFields(logFields).Infof("Copied %d files, removed %d.",
			len(res.Copied), len(res.Removed))
	}

	if err != nil {
		return errors.WithContext(err, "sync")
	}

	version := r.syncer.Snapshot().Version()
	r.log.WithFields(log.Fields{
		"version": version,
		"changed": version != r.lastVersion,
	}).Debug("Pass complete")
	r.lastVersion = version
	return nil
}

// truncateSlice truncates the given slice of strings to the given length. If
// the slice is longer than `length`, a message is appended saying how many
// more items are in the slice.
func truncateSlice(slc []string, length int) (truncated []string) {
	if len(slc) <= length {
		return slc
	}
	msg := fmt.Sprintf("... %d more ...", len(slc)-length)
	return append(slc[:length:length], msg)
}
