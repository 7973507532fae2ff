package placement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoHosts() []Host {
	return []Host{
		{Label: "h0", PublicAddress: "pub0", PrivateAddress: "ip0"},
		{Label: "h1", PublicAddress: "pub1", PrivateAddress: "ip1"},
	}
}

func TestAssign_Scenario(t *testing.T) {
	hosts := twoHosts()
	placements, counters, err := Assign(hosts, []string{"A", "B", "C"}, NewPortCounters(hosts, 6000))
	require.NoError(t, err)
	require.Len(t, placements, 3)

	assert.Equal(t, Placement{Node: "A", Host: hosts[0], P2PPort: 6000, APIPort: 6001, VisPort: 6002}, placements[0])
	assert.Equal(t, Placement{Node: "B", Host: hosts[1], P2PPort: 6000, APIPort: 6001, VisPort: 6002}, placements[1])
	assert.Equal(t, Placement{Node: "C", Host: hosts[0], P2PPort: 6003, APIPort: 6004, VisPort: 6005}, placements[2])

	assert.Equal(t, PortCounters{"h0": 6006, "h1": 6003}, counters)
}

func TestAssign_RoundRobinAndPerHostPorts(t *testing.T) {
	hosts := []Host{{Label: "a"}, {Label: "b"}, {Label: "c"}}
	nodes := make([]string, 10)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("n%d", i)
	}

	placements, _, err := Assign(hosts, nodes, NewPortCounters(hosts, 7000))
	require.NoError(t, err)

	used := map[string]map[int]bool{}
	last := map[string]int{}
	for i, p := range placements {
		assert.Equal(t, hosts[i%len(hosts)], p.Host, "node %d", i)

		k := i / len(hosts)
		assert.Equal(t, 7000+PortsPerNode*k, p.P2PPort)
		assert.Equal(t, p.P2PPort+1, p.APIPort)
		assert.Equal(t, p.P2PPort+2, p.VisPort)

		if prev, ok := last[p.Host.Label]; ok {
			assert.Greater(t, p.P2PPort, prev)
		}
		last[p.Host.Label] = p.VisPort

		if used[p.Host.Label] == nil {
			used[p.Host.Label] = map[int]bool{}
		}
		for _, port := range []int{p.P2PPort, p.APIPort, p.VisPort} {
			assert.False(t, used[p.Host.Label][port], "port %d reused on %s", port, p.Host.Label)
			used[p.Host.Label][port] = true
		}
	}
}

func TestAssign_DoesNotMutateCounters(t *testing.T) {
	hosts := twoHosts()
	counters := NewPortCounters(hosts, 6000)

	_, next, err := Assign(hosts, []string{"A"}, counters)
	require.NoError(t, err)

	assert.Equal(t, 6000, counters["h0"])
	assert.Equal(t, 6003, next["h0"])

	// threading the returned counters continues allocation on the same hosts
	more, _, err := Assign(hosts, []string{"B"}, next)
	require.NoError(t, err)
	assert.Equal(t, 6003, more[0].P2PPort)
}

func TestAssign_Errors(t *testing.T) {
	t.Run("empty host pool", func(t *testing.T) {
		_, _, err := Assign(nil, []string{"A"}, PortCounters{})
		assert.ErrorIs(t, err, ErrNoHosts)
	})

	t.Run("missing counter", func(t *testing.T) {
		_, _, err := Assign(twoHosts(), []string{"A"}, PortCounters{})
		assert.ErrorContains(t, err, `no port counter for host "h0"`)
	})

	t.Run("port range exhausted", func(t *testing.T) {
		hosts := []Host{{Label: "h0"}}
		_, _, err := Assign(hosts, []string{"A", "B"}, NewPortCounters(hosts, 65531))
		assert.ErrorIs(t, err, ErrPortExhausted)
		assert.ErrorContains(t, err, `"B"`)
	})
}

func TestAssign_NoNodes(t *testing.T) {
	hosts := twoHosts()
	placements, counters, err := Assign(hosts, nil, NewPortCounters(hosts, 6000))
	require.NoError(t, err)
	assert.Empty(t, placements)
	assert.Equal(t, NewPortCounters(hosts, 6000), counters)
}

func TestResolvePeers(t *testing.T) {
	hosts := twoHosts()
	placements, _, err := Assign(hosts, []string{"A", "B", "C"}, NewPortCounters(hosts, 6000))
	require.NoError(t, err)

	peers, err := ResolvePeers(placements, []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}})
	require.NoError(t, err)
	require.Len(t, peers, 3)

	assert.Equal(t, []Peer{{Node: "B", Address: "ip1", Port: 6000}}, peers[0])
	assert.Equal(t, []Peer{{Node: "C", Address: "ip0", Port: 6003}}, peers[1])
	assert.Empty(t, peers[2])
	assert.Equal(t, "ip1:6000", peers[0][0].String())
}

func TestResolvePeers_ForwardReferencesAndOrder(t *testing.T) {
	hosts := twoHosts()
	placements, _, err := Assign(hosts, []string{"A", "B", "C"}, NewPortCounters(hosts, 6000))
	require.NoError(t, err)

	edges := []Edge{{From: "A", To: "C"}, {From: "C", To: "A"}, {From: "A", To: "B"}}
	peers, err := ResolvePeers(placements, edges)
	require.NoError(t, err)

	require.Len(t, peers[0], 2)
	assert.Equal(t, "C", peers[0][0].Node)
	assert.Equal(t, "B", peers[0][1].Node)
	assert.Equal(t, []Peer{{Node: "A", Address: "ip0", Port: 6000}}, peers[2])
}

func TestResolvePeers_UnknownTarget(t *testing.T) {
	hosts := twoHosts()
	placements, _, err := Assign(hosts, []string{"A"}, NewPortCounters(hosts, 6000))
	require.NoError(t, err)

	_, err = ResolvePeers(placements, []Edge{{From: "A", To: "Z"}})

	var edgeErr *EdgeError
	require.True(t, errors.As(err, &edgeErr))
	assert.Equal(t, "Z", edgeErr.Missing)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []string
		edges   []Edge
		wantErr string
	}{
		{name: "valid", nodes: []string{"A", "B"}, edges: []Edge{{From: "A", To: "B"}}},
		{name: "no connections", nodes: []string{"A"}},
		{name: "undefined target", nodes: []string{"A"}, edges: []Edge{{From: "A", To: "Z"}}, wantErr: `undefined node "Z"`},
		{name: "undefined source", nodes: []string{"A"}, edges: []Edge{{From: "Y", To: "A"}}, wantErr: `undefined node "Y"`},
		{name: "duplicate node", nodes: []string{"A", "A"}, wantErr: `nodes[1]: duplicate node name "A"`},
		{name: "empty node", nodes: []string{"A", ""}, wantErr: "nodes[1]: name is empty"},
		{name: "parent traversal", nodes: []string{"../../../escaped"}, wantErr: "nodes[0]: name must be a single path element"},
		{name: "dot dot", nodes: []string{"A", ".."}, wantErr: "nodes[1]: name must be a single path element"},
		{name: "nested path", nodes: []string{"a/b"}, wantErr: "single path element"},
		{name: "backslash", nodes: []string{`a\b`}, wantErr: "single path element"},
		{name: "absolute", nodes: []string{"/etc"}, wantErr: "single path element"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.nodes, tt.edges)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIsEdgeError(t *testing.T) {
	err := Validate([]string{"A"}, []Edge{{From: "A", To: "Z"}})
	assert.True(t, IsEdgeError(err))
	assert.False(t, IsEdgeError(Validate([]string{"A", "A"}, nil)))
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"A", "node-1", "h0.lan", "..x"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{".", "..", "../x", "x/..", "/abs", `x\y`, "nul\x00"} {
		assert.ErrorIs(t, ValidateName(name), ErrUnsafeName, name)
	}
	assert.EqualError(t, ValidateName(""), "name is empty")
}

func TestValidateHosts(t *testing.T) {
	assert.NoError(t, ValidateHosts(twoHosts()))

	err := ValidateHosts([]Host{{Label: "h0"}, {Label: "../etc"}})
	assert.ErrorIs(t, err, ErrUnsafeName)
	assert.ErrorContains(t, err, "hosts[1]: label")
}
