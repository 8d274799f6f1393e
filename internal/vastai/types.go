package vastai

import (
	"fmt"
	"math"
	"net"
	"strconv"
)

// StateRunning is the lifecycle state the marketplace reports once an
// instance has booted and is reachable.
const StateRunning = "running"

// Offer is a single marketplace listing as returned by `search offers --raw`.
// The raw records carry far more fields than this; we only decode what the
// rental flow ranks and reports on.
type Offer struct {
	ID          int64    `json:"id"`
	DPH         *float64 `json:"dph"`
	Geolocation string   `json:"geolocation"`
	GPUName     string   `json:"gpu_name"`
	NumGPUs     int      `json:"num_gpus"`
	Reliability float64  `json:"reliability"`
}

// Price returns the hourly price used for ranking. Offers that come back
// without a dph field rank after every priced offer.
func (o Offer) Price() float64 {
	if o.DPH == nil {
		return math.MaxFloat64
	}
	return *o.DPH
}

// DisplayPrice renders the hourly price for logs.
func (o Offer) DisplayPrice() string {
	if o.DPH == nil {
		return "unknown"
	}
	return fmt.Sprintf("$%.3f/hr", *o.DPH)
}

// Instance is a provisioned machine as returned by `show instances --raw`.
type Instance struct {
	ID       int64  `json:"id"`
	CurState string `json:"cur_state"`
	SSHHost  string `json:"ssh_host"`
	SSHPort  int    `json:"ssh_port"`
	GPUName  string `json:"gpu_name"`
	Label    string `json:"label"`
}

func (i Instance) Running() bool {
	return i.CurState == StateRunning
}

// SSHAddr returns the host:port pair for connecting to the instance.
func (i Instance) SSHAddr() string {
	return net.JoinHostPort(i.SSHHost, strconv.Itoa(i.SSHPort))
}

// SearchQuery describes the offer filter passed to `search offers`. The
// zero value matches nothing useful; callers fill it from flags.
type SearchQuery struct {
	GPUName     string
	NumGPUs     int
	Geolocation string
	Reliability float64
}

// Filter renders the query in the CLI's filter-expression syntax, e.g.
// "gpu_name=RTX_4090 num_gpus=1 geolocation=US reliability > 0.9".
func (q SearchQuery) Filter() string {
	return fmt.Sprintf(
		"gpu_name=%s num_gpus=%d geolocation=%s reliability > %g",
		q.GPUName, q.NumGPUs, q.Geolocation, q.Reliability,
	)
}

// CreateOptions are the provisioning parameters for `create instance`.
type CreateOptions struct {
	Image  string
	DiskGB int
	SSH    bool
}

// CreateResult reports the marketplace's verdict on a rental attempt.
// Accepted mirrors the CLI's success markers, not its exit code; the CLI is
// not reliable about exit codes on rejection.
type CreateResult struct {
	Accepted bool
	// NewContract is the instance id of the freshly rented machine, when the
	// CLI output included one. Zero otherwise.
	NewContract int64
	// Output is the combined stdout/stderr of the create invocation, kept
	// for diagnostics on rejection.
	Output string
}
