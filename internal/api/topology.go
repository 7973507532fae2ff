package api

// Host is one line of the host list: a machine that receives logical nodes.
type Host struct {
	Label          string `json:"label" yaml:"label"`
	PublicAddress  string `json:"public_address" yaml:"public_address"`
	PrivateAddress string `json:"private_address" yaml:"private_address"`
}

// Connection is a directed peer link from one logical node to another.
type Connection struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Topology is the logical node graph. Node order is significant: it drives placement.
type Topology struct {
	Nodes       []string     `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections" yaml:"connections"`
}
