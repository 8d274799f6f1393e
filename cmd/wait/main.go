// wait polls the marketplace until the target instance reports the running
// state, then prints its SSH endpoint. With -state-only it reports state
// transitions and exits without surfacing connection details.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"

	"github.com/tensorlabs/gpurent/internal/ledger"
	"github.com/tensorlabs/gpurent/internal/logging"
	"github.com/tensorlabs/gpurent/internal/vastai"
	"github.com/tensorlabs/gpurent/internal/watch"
)

func main() {
	a := parseArgs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cleanup := logging.Setup(ctx, a.Debug, a.LogFile)

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	code := run(ctx, a)
	cleanup()
	os.Exit(code)
}

func run(ctx context.Context, a args) int {
	log := clog.FromContext(ctx)

	id := a.Instance
	if id == 0 {
		id = lastRentedContract(ctx, a.LedgerPath)
	}
	if id == 0 {
		log.Error("no instance id given and no recorded rental to fall back on")
		return 1
	}

	client := vastai.NewClient(a.VastBin)
	log.Info("waiting for instance to become ready", "instance_id", id)

	if a.StateOnly {
		if err := watch.WaitState(ctx, client, id, a.Interval); err != nil {
			log.Error("wait interrupted", "error", err)
			return 1
		}
		log.Info("instance is running", "instance_id", id)
		return 0
	}

	inst, err := watch.WaitInstance(ctx, client, id, a.Interval)
	if err != nil {
		log.Error("wait interrupted", "error", err)
		return 1
	}
	log.Info("instance is running", "instance_id", inst.ID)
	fmt.Printf("SSH: %s\n", inst.SSHAddr())
	return 0
}

// lastRentedContract resolves the poll target from the rental ledger when no
// -instance flag was given. Any ledger trouble just means no fallback.
func lastRentedContract(ctx context.Context, path string) int64 {
	log := clog.FromContext(ctx)

	led, err := ledger.Open(path)
	if err != nil {
		log.Debug("rental ledger unavailable", "error", err)
		return 0
	}
	last, ok, err := led.Last(ctx)
	if err != nil {
		log.Debug("reading rental ledger failed", "error", err)
		return 0
	}
	if !ok || last.Contract == 0 {
		return 0
	}
	log.Info("using most recent rental from ledger",
		"contract", last.Contract, "rented_at", last.RentedAt)
	return last.Contract
}
