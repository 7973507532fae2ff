// Package manifest writes and reads nodes.txt, the flat record of where every
// node of a run was placed.
//
// Each line is name,host,public_address,private_address,p2p_port,api_port,vis_port
// with no header row.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/afero"
)

const fieldCount = 7

// Entry is one manifest line.
type Entry struct {
	Name           string
	Host           string
	PublicAddress  string
	PrivateAddress string
	P2PPort        int
	APIPort        int
	VisPort        int
}

func (e Entry) record() []string {
	return []string{
		e.Name,
		e.Host,
		e.PublicAddress,
		e.PrivateAddress,
		strconv.Itoa(e.P2PPort),
		strconv.Itoa(e.APIPort),
		strconv.Itoa(e.VisPort),
	}
}

// Writer rebuilds a manifest file from scratch and appends one line per node.
type Writer struct {
	file afero.File
	csv  *csv.Writer
}

// Create truncates the manifest at path.
func Create(fs afero.Fs, path string) (*Writer, error) {
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest %s: %w", path, err)
	}
	return &Writer{file: file, csv: csv.NewWriter(file)}, nil
}

// Append writes one line and flushes it, so a failed run leaves every line written so far.
func (w *Writer) Append(entry Entry) error {
	if err := w.csv.Write(entry.record()); err != nil {
		return fmt.Errorf("failed to write manifest entry for %s: %w", entry.Name, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush manifest entry for %s: %w", entry.Name, err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.csv.Flush()
	return errors.Join(w.csv.Error(), w.file.Close())
}

// Read parses a manifest from fs.
func Read(fs afero.Fs, path string) ([]Entry, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = fieldCount

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed manifest: %w", err)
		}

		line, _ := reader.FieldPos(0)
		ports := make([]int, 3)
		for i, raw := range record[4:] {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("manifest line %d: invalid port %q", line, raw)
			}
			ports[i] = port
		}

		entries = append(entries, Entry{
			Name:           record[0],
			Host:           record[1],
			PublicAddress:  record[2],
			PrivateAddress: record[3],
			P2PPort:        ports[0],
			APIPort:        ports[1],
			VisPort:        ports[2],
		})
	}

	return entries, nil
}
