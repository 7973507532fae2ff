// Package inventory reads the host list and topology files the placer consumes.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/terabiome/testbed/internal/api"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/pkg/placement"
)

const minHostFields = 3

// LoadHosts reads a host list: one host per line as label,public_address,private_address.
// Extra fields are ignored; blank lines and lines starting with # are skipped.
func LoadHosts(fs afero.Fs, path string) ([]api.Host, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open host list: %v", errdefs.ErrConfiguration, err)
	}
	defer file.Close()

	hosts, err := ParseHosts(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hosts, nil
}

// ParseHosts parses host list content. An empty list is not an error here;
// the placer rejects it.
func ParseHosts(r io.Reader) ([]api.Host, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	var hosts []api.Host
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed host list: %v", errdefs.ErrConfiguration, err)
		}

		line, _ := reader.FieldPos(0)
		if len(record) < minHostFields {
			return nil, fmt.Errorf("%w: host list line %d: expected at least %d fields (label,public,private), got %d",
				errdefs.ErrConfiguration, line, minHostFields, len(record))
		}

		host := api.Host{
			Label:          strings.TrimSpace(record[0]),
			PublicAddress:  strings.TrimSpace(record[1]),
			PrivateAddress: strings.TrimSpace(record[2]),
		}
		if host.Label == "" || host.PrivateAddress == "" {
			return nil, fmt.Errorf("%w: host list line %d: label and private address are required",
				errdefs.ErrConfiguration, line)
		}
		if err := placement.ValidateName(host.Label); err != nil {
			return nil, fmt.Errorf("%w: host list line %d: label: %v", errdefs.ErrConfiguration, line, err)
		}
		hosts = append(hosts, host)
	}

	return hosts, nil
}
