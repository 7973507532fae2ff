// Package errdefs holds the error classes every stage of the testbed tooling reports.
// Callers wrap one of these with fmt.Errorf("%w: ...") and inspect it with errors.Is.
package errdefs

import "errors"

var (
	// ErrConfiguration reports bad or missing arguments, an empty host list or invalid settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvisioning reports a key-generation primitive that is missing, failed or printed nothing.
	ErrProvisioning = errors.New("provisioning error")

	// ErrTopology reports a topology whose connections reference undefined nodes.
	ErrTopology = errors.New("topology error")

	// ErrMissingInput reports an upstream artifact, such as the funding token, that does not exist.
	ErrMissingInput = errors.New("missing input")
)
