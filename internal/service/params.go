package service

import "github.com/terabiome/testbed/pkg/placement"

// PlaceParams contains transport-agnostic input for one placement run.
type PlaceParams struct {
	Hosts       []placement.Host
	Nodes       []string
	Connections []placement.Edge
	KeySlots    int
}

// NodeConfig is the resolved placement and launch command of one node.
type NodeConfig struct {
	Placement  placement.Placement
	Peers      []placement.Peer
	PeerOpt    string
	LoadKeyOpt string
	Command    string
}

// Deployment is the full result of a placement run, in topology order.
type Deployment struct {
	Nodes []NodeConfig
}

// ProvisionResult lists what a keypair run wrote.
type ProvisionResult struct {
	KeyFiles         []string
	FundingToken     string
	FundingTokenPath string
}
