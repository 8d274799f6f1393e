package main

import (
	"flag"
	"time"
)

type args struct {
	// Instance to watch. Zero falls back to the most recent ledger entry.
	Instance int64

	Interval time.Duration
	Timeout  time.Duration

	// StateOnly reports lifecycle state transitions without surfacing the
	// instance record or SSH details.
	StateOnly bool

	VastBin    string
	LedgerPath string
	LogFile    string
	Debug      bool
}

func parseArgs() args {
	var a args

	flag.Int64Var(&a.Instance, "instance", 0, "Instance id to wait for (default: most recent rental in the ledger)")
	flag.DurationVar(&a.Interval, "interval", 5*time.Second, "Pause between status polls")
	flag.DurationVar(&a.Timeout, "timeout", 0, "Overall deadline for the wait (0 = poll forever)")
	flag.BoolVar(&a.StateOnly, "state-only", false, "Only report state transitions, skip SSH details")

	flag.StringVar(&a.VastBin, "vastai", "", "Path to the vastai binary (default: vastai on PATH)")
	flag.StringVar(&a.LedgerPath, "ledger", "", "Path to the rental ledger (default: ~/.gpurent/ledger.db)")
	flag.StringVar(&a.LogFile, "log-file", "", "Also write JSON logs to this file")
	flag.BoolVar(&a.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return a
}
