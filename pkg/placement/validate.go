package placement

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafeName is returned for names that cannot be used as a single file or directory name.
var ErrUnsafeName = errors.New("name must be a single path element")

// ValidateName checks that name can be joined under an output directory
// without escaping it.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

// ValidateHosts checks every host label is usable as a directory name.
func ValidateHosts(hosts []Host) error {
	for i, host := range hosts {
		if err := ValidateName(host.Label); err != nil {
			return fmt.Errorf("hosts[%d]: label: %w", i, err)
		}
	}
	return nil
}

// EdgeError reports a connection whose endpoint is not a node of the topology.
type EdgeError struct {
	Edge    Edge
	Missing string
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("connection %q -> %q references undefined node %q", e.Edge.From, e.Edge.To, e.Missing)
}

// Validate checks that node names are unique single path elements and that
// every edge endpoint names one of the nodes.
func Validate(nodes []string, edges []Edge) error {
	seen := make(map[string]bool, len(nodes))
	for i, node := range nodes {
		if err := ValidateName(node); err != nil {
			return fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if seen[node] {
			return fmt.Errorf("nodes[%d]: duplicate node name %q", i, node)
		}
		seen[node] = true
	}

	for _, edge := range edges {
		if !seen[edge.From] {
			return &EdgeError{Edge: edge, Missing: edge.From}
		}
		if !seen[edge.To] {
			return &EdgeError{Edge: edge, Missing: edge.To}
		}
	}

	return nil
}

// IsEdgeError reports whether err carries an *EdgeError.
func IsEdgeError(err error) bool {
	var edgeErr *EdgeError
	return errors.As(err, &edgeErr)
}
