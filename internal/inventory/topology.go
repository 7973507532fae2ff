package inventory

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/terabiome/testbed/internal/api"
	"github.com/terabiome/testbed/internal/errdefs"
	"gopkg.in/yaml.v3"
)

// LoadTopology reads a topology file. The format follows the extension
// (.json, .yaml, .yml); anything else is tried as YAML, then JSON.
func LoadTopology(fs afero.Fs, path string) (*api.Topology, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read topology file: %v", errdefs.ErrConfiguration, err)
	}

	var topology *api.Topology
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		topology, err = ParseTopologyJSON(data)
	case ".yaml", ".yml":
		topology, err = ParseTopologyYAML(data)
	default:
		topology, err = ParseTopologyYAML(data)
		if err != nil {
			topology, err = ParseTopologyJSON(data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return topology, nil
}

func ParseTopologyJSON(data []byte) (*api.Topology, error) {
	var topology api.Topology
	if err := json.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", errdefs.ErrTopology, err)
	}
	return &topology, nil
}

func ParseTopologyYAML(data []byte) (*api.Topology, error) {
	var topology api.Topology
	if err := yaml.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", errdefs.ErrTopology, err)
	}
	return &topology, nil
}
