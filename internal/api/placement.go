package api

// PlanRequest asks for a dry-run placement of a topology onto hosts.
type PlanRequest struct {
	Hosts        []Host   `json:"hosts"`
	Topology     Topology `json:"topology"`
	KeySlots     *int     `json:"key_slots,omitempty"`
	FundingToken string   `json:"funding_token,omitempty"`
}

// NodePlan describes where one node lands and how it is launched.
type NodePlan struct {
	Name           string   `json:"name"`
	Host           string   `json:"host"`
	PublicAddress  string   `json:"public_address"`
	PrivateAddress string   `json:"private_address"`
	P2PPort        int      `json:"p2p_port"`
	APIPort        int      `json:"api_port"`
	VisPort        int      `json:"vis_port"`
	Peers          []string `json:"peers"`
	Command        string   `json:"command"`
}

// PlanResponse lists node plans in topology order.
type PlanResponse struct {
	Nodes []NodePlan `json:"nodes"`
}
