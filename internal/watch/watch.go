// Package watch polls the marketplace until a target instance reports the
// running state. There is deliberately no retry budget: polling continues
// until the state is observed or the context is cancelled.
package watch

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/tensorlabs/gpurent/internal/vastai"
)

// DefaultInterval is the pause between status polls.
const DefaultInterval = 5 * time.Second

// StateUnknown is reported for cycles where the instance list could not be
// fetched or parsed, or did not contain the target instance.
const StateUnknown = "unknown"

// StatusSource is the slice of the CLI client the poll loops need.
type StatusSource interface {
	Instances(ctx context.Context) ([]vastai.Instance, error)
}

// WaitState blocks until the target instance reports running, reporting a
// state per cycle. Any failure to list or locate the instance counts as
// "unknown" and polling continues. Returns ctx.Err() on cancellation.
func WaitState(ctx context.Context, src StatusSource, instanceID int64, interval time.Duration) error {
	log := clog.FromContext(ctx).With("instance_id", instanceID)
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		state := checkState(ctx, src, instanceID)
		log.Info("current state", "state", state)
		if state == vastai.StateRunning {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func checkState(ctx context.Context, src StatusSource, instanceID int64) string {
	instances, err := src.Instances(ctx)
	if err != nil {
		clog.FromContext(ctx).Debug("instance list unavailable", "error", err)
		return StateUnknown
	}
	for _, inst := range instances {
		if inst.ID == instanceID {
			return inst.CurState
		}
	}
	return StateUnknown
}

// WaitInstance blocks until the target instance reports running, then
// returns its full record so the caller can surface SSH details. Cycles
// where the instance is missing from the list are logged and retried.
func WaitInstance(ctx context.Context, src StatusSource, instanceID int64, interval time.Duration) (vastai.Instance, error) {
	log := clog.FromContext(ctx).With("instance_id", instanceID)
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		inst, found := lookup(ctx, src, instanceID)
		switch {
		case !found:
			log.Info("instance not found in list yet")
		case inst.Running():
			log.Info("instance is running",
				"ssh_host", inst.SSHHost, "ssh_port", inst.SSHPort)
			return inst, nil
		default:
			log.Info("current state", "state", inst.CurState)
		}

		select {
		case <-ctx.Done():
			return vastai.Instance{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func lookup(ctx context.Context, src StatusSource, instanceID int64) (vastai.Instance, bool) {
	instances, err := src.Instances(ctx)
	if err != nil {
		clog.FromContext(ctx).Debug("instance list unavailable", "error", err)
		return vastai.Instance{}, false
	}
	for _, inst := range instances {
		if inst.ID == instanceID {
			return inst, true
		}
	}
	return vastai.Instance{}, false
}
