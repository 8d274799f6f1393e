package main

import (
	"flag"
	"time"
)

type args struct {
	// Offer filter
	GPUName     string
	NumGPUs     int
	Geolocation string
	Reliability float64

	// Provisioning
	Image  string
	DiskGB int

	// Pacing
	Delay   time.Duration
	Timeout time.Duration

	// Plumbing
	VastBin    string
	LedgerPath string
	LogFile    string
	Debug      bool
}

func parseArgs() args {
	var a args

	flag.StringVar(&a.GPUName, "gpu", "RTX_4090", "GPU model to search for")
	flag.IntVar(&a.NumGPUs, "num-gpus", 1, "Number of GPUs per offer")
	flag.StringVar(&a.Geolocation, "geo", "US", "Geolocation filter")
	flag.Float64Var(&a.Reliability, "reliability", 0.9, "Minimum host reliability")

	flag.StringVar(&a.Image, "image", "pytorch/pytorch", "Image to provision the instance with")
	flag.IntVar(&a.DiskGB, "disk", 60, "Disk size in GB")

	flag.DurationVar(&a.Delay, "delay", time.Second, "Pause between failed rental attempts")
	flag.DurationVar(&a.Timeout, "timeout", 0, "Overall deadline for the run (0 = none)")

	flag.StringVar(&a.VastBin, "vastai", "", "Path to the vastai binary (default: vastai on PATH)")
	flag.StringVar(&a.LedgerPath, "ledger", "", "Path to the rental ledger (default: ~/.gpurent/ledger.db)")
	flag.StringVar(&a.LogFile, "log-file", "", "Also write JSON logs to this file")
	flag.BoolVar(&a.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return a
}
