// Package placement maps logical nodes of a topology onto a pool of hosts.
//
// Nodes are placed round-robin in the order they are given, and each node draws
// three consecutive ports (p2p, api, visualization) from a per-host counter.
// Peer resolution is a separate pass over the complete placement set.
package placement

import (
	"errors"
	"fmt"
)

// PortsPerNode is the number of ports drawn from a host counter for every node.
const PortsPerNode = 3

const maxPort = 65535

var (
	ErrNoHosts       = errors.New("host pool is empty")
	ErrPortExhausted = errors.New("port range exhausted")
)

// Host is one physical machine available to receive nodes.
type Host struct {
	Label          string
	PublicAddress  string
	PrivateAddress string
}

// Edge is a directed peer connection between two logical nodes.
type Edge struct {
	From string
	To   string
}

// Placement is the host and ports assigned to one logical node.
type Placement struct {
	Node    string
	Host    Host
	P2PPort int
	APIPort int
	VisPort int
}

// Peer is a resolved connection target.
type Peer struct {
	Node    string
	Address string
	Port    int
}

func (p Peer) String() string {
	return fmt.Sprintf("%s:%d", p.Address, p.Port)
}

// PortCounters maps a host label to the next free port on that host.
type PortCounters map[string]int

// NewPortCounters starts every host of the pool at base.
func NewPortCounters(hosts []Host, base int) PortCounters {
	counters := make(PortCounters, len(hosts))
	for _, host := range hosts {
		counters[host.Label] = base
	}
	return counters
}

func (c PortCounters) clone() PortCounters {
	out := make(PortCounters, len(c))
	for label, next := range c {
		out[label] = next
	}
	return out
}

// Assign places nodes onto hosts round-robin: the i-th node goes to hosts[i mod len(hosts)].
// The given counters are not modified; the advanced counters are returned.
func Assign(hosts []Host, nodes []string, counters PortCounters) ([]Placement, PortCounters, error) {
	if len(hosts) == 0 {
		return nil, counters, ErrNoHosts
	}

	next := counters.clone()
	placements := make([]Placement, 0, len(nodes))

	for i, node := range nodes {
		host := hosts[i%len(hosts)]

		port, ok := next[host.Label]
		if !ok {
			return nil, counters, fmt.Errorf("no port counter for host %q", host.Label)
		}
		if port < 1 || port+PortsPerNode-1 > maxPort {
			return nil, counters, fmt.Errorf("%w: host %q cannot fit node %q at port %d", ErrPortExhausted, host.Label, node, port)
		}

		placements = append(placements, Placement{
			Node:    node,
			Host:    host,
			P2PPort: port,
			APIPort: port + 1,
			VisPort: port + 2,
		})
		next[host.Label] = port + PortsPerNode
	}

	return placements, next, nil
}

// ResolvePeers returns, for every placement in order, the peers its outgoing
// connections point at. Connection order is preserved within each node.
func ResolvePeers(placements []Placement, edges []Edge) ([][]Peer, error) {
	index := make(map[string]int, len(placements))
	for i, p := range placements {
		index[p.Node] = i
	}

	peers := make([][]Peer, len(placements))
	for i, p := range placements {
		for _, edge := range edges {
			if edge.From != p.Node {
				continue
			}
			j, ok := index[edge.To]
			if !ok {
				return nil, &EdgeError{Edge: edge, Missing: edge.To}
			}
			target := placements[j]
			peers[i] = append(peers[i], Peer{
				Node:    target.Node,
				Address: target.Host.PrivateAddress,
				Port:    target.P2PPort,
			})
		}
	}

	return peers, nil
}
