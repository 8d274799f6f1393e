package vastai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The CLI sometimes emits concatenated JSON documents or stray diagnostics
// on stdout instead of a single array. Decoding is isolated here so that
// weirdness never leaks past the client: callers get a clean slice or an
// error, nothing in between.

func decodeOffers(raw []byte) ([]Offer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var offers []Offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, fmt.Errorf("malformed offer list: %w", err)
	}
	return offers, nil
}

func decodeInstances(raw []byte) ([]Instance, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var instances []Instance
	if err := json.Unmarshal(raw, &instances); err != nil {
		return nil, fmt.Errorf("malformed instance list: %w", err)
	}
	return instances, nil
}

// createResponse is the structured shape `create instance` produces when it
// behaves. More often it prints a Python-repr dict like
// "Started. {'success': True, 'new_contract': 28601048}".
type createResponse struct {
	Success     bool  `json:"success"`
	NewContract int64 `json:"new_contract"`
}

var newContractRe = regexp.MustCompile(`'new_contract':\s*(\d+)`)

// parseCreateOutput decides whether a rental attempt was accepted. Proper
// JSON is tried first; failing that, the same substring markers the CLI has
// always been judged by.
func parseCreateOutput(out string) CreateResult {
	res := CreateResult{Output: out}

	var cr createResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &cr); err == nil {
		res.Accepted = cr.Success
		res.NewContract = cr.NewContract
		return res
	}

	res.Accepted = strings.Contains(out, "started") ||
		strings.Contains(out, "'success': True")
	if m := newContractRe.FindStringSubmatch(out); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			res.NewContract = id
		}
	}
	return res
}
