// Package vastai wraps the Vast.ai marketplace CLI. Every interaction with
// the marketplace goes through the external binary as a blocking subprocess;
// this package owns argument construction and output decoding so the rental
// and polling flows never see raw CLI output.
package vastai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"
)

// DefaultBin is the marketplace CLI binary resolved from PATH when no
// explicit path is configured.
const DefaultBin = "vastai"

// execFunc is the seam between the client and the real subprocess. Tests
// replace it to script CLI behavior.
type execFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client invokes the marketplace CLI.
type Client struct {
	bin string
	run execFunc
}

func NewClient(bin string) *Client {
	if bin == "" {
		bin = DefaultBin
	}
	return &Client{bin: bin, run: runCommand}
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, []byte, error) {
	clog.FromContext(ctx).Debug("invoking marketplace CLI",
		"cmd", shellquote.Join(append([]string{c.bin}, args...)...))
	return c.run(ctx, c.bin, args...)
}

// exitedNonzero reports whether err means the CLI ran but exited nonzero.
// The CLI's exit codes carry no signal we trust; its stdout does.
func exitedNonzero(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// SearchOffers queries the marketplace for offers matching q, ordered by the
// CLI's own dph sort. A run that produces no parseable offers is an error;
// callers are expected to log it and carry on with zero offers.
func (c *Client) SearchOffers(ctx context.Context, q SearchQuery) ([]Offer, error) {
	stdout, stderr, err := c.exec(ctx, "search", "offers", q.Filter(), "-o", "dph", "--raw")
	if err != nil && !exitedNonzero(err) {
		return nil, fmt.Errorf("invoking %s: %w", c.bin, err)
	}

	offers, perr := decodeOffers(stdout)
	if perr != nil {
		return nil, fmt.Errorf("parsing offer list: %w (stderr: %s)", perr, trimmed(stderr))
	}
	if err != nil && len(offers) == 0 {
		return nil, fmt.Errorf("search offers failed: %w: %s", err, trimmed(stderr))
	}
	return offers, nil
}

// CreateInstance attempts to rent the given offer. On acceptance a billable
// instance exists on the marketplace side regardless of what happens to this
// process afterwards, which is why callers record the result immediately.
//
// The returned error covers only failures to run the CLI at all; a rejected
// rental is a non-error result with Accepted=false.
func (c *Client) CreateInstance(ctx context.Context, offerID int64, opts CreateOptions) (CreateResult, error) {
	args := []string{
		"create", "instance", strconv.FormatInt(offerID, 10),
		"--image", opts.Image,
		"--disk", strconv.Itoa(opts.DiskGB),
	}
	if opts.SSH {
		args = append(args, "--ssh")
	}

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil && !exitedNonzero(err) {
		return CreateResult{}, fmt.Errorf("invoking %s: %w", c.bin, err)
	}

	res := parseCreateOutput(string(stdout))
	res.Output = strings.TrimSpace(string(stdout) + string(stderr))
	return res, nil
}

// Instances lists every instance the account currently holds.
func (c *Client) Instances(ctx context.Context) ([]Instance, error) {
	stdout, stderr, err := c.exec(ctx, "show", "instances", "--raw")
	if err != nil && !exitedNonzero(err) {
		return nil, fmt.Errorf("invoking %s: %w", c.bin, err)
	}

	instances, perr := decodeInstances(stdout)
	if perr != nil {
		return nil, fmt.Errorf("parsing instance list: %w (stderr: %s)", perr, trimmed(stderr))
	}
	if err != nil && len(instances) == 0 {
		return nil, fmt.Errorf("show instances failed: %w: %s", err, trimmed(stderr))
	}
	return instances, nil
}

func trimmed(b []byte) string {
	return strings.TrimSpace(string(b))
}
