//go:build !wasip1

package wasihttp

import "github.com/wippyai/wasi-http-guest/errors"

// NewDefault needs a wasip1 guest build. Native programs construct a Client
// with New over the reference host in package host.
func NewDefault() (*Client, error) {
	return nil, errors.Unsupported(errors.PhaseHost, "host imports are only available in wasip1 builds")
}
