package adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/terabiome/testbed/internal/api"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/internal/service"
	"github.com/terabiome/testbed/pkg/placement"
)

// DefaultKeySlots is used when no keypair count is given.
const DefaultKeySlots = 1

// ParseCount reads a keypair count argument. An empty argument means DefaultKeySlots.
func ParseCount(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return DefaultKeySlots, nil
	}

	count, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: keypair count %q is not an integer", errdefs.ErrConfiguration, arg)
	}
	if count < 0 {
		return 0, fmt.Errorf("%w: keypair count must not be negative, got %d", errdefs.ErrConfiguration, count)
	}
	return count, nil
}

func AdaptPlacement(hosts []api.Host, topology api.Topology, keySlots int) service.PlaceParams {
	params := service.PlaceParams{
		Hosts:       AdaptHosts(hosts),
		Nodes:       append([]string(nil), topology.Nodes...),
		Connections: make([]placement.Edge, len(topology.Connections)),
		KeySlots:    keySlots,
	}
	for i, conn := range topology.Connections {
		params.Connections[i] = placement.Edge{From: conn.From, To: conn.To}
	}
	return params
}

func AdaptHosts(hosts []api.Host) []placement.Host {
	result := make([]placement.Host, len(hosts))
	for i, h := range hosts {
		result[i] = placement.Host{
			Label:          h.Label,
			PublicAddress:  h.PublicAddress,
			PrivateAddress: h.PrivateAddress,
		}
	}
	return result
}

func AdaptPlanRequest(req api.PlanRequest) service.PlaceParams {
	keySlots := DefaultKeySlots
	if req.KeySlots != nil {
		keySlots = *req.KeySlots
	}
	return AdaptPlacement(req.Hosts, req.Topology, keySlots)
}

func AdaptDeploymentToAPI(deployment *service.Deployment) api.PlanResponse {
	nodes := make([]api.NodePlan, len(deployment.Nodes))
	for i, node := range deployment.Nodes {
		p := node.Placement

		peers := make([]string, len(node.Peers))
		for j, peer := range node.Peers {
			peers[j] = peer.String()
		}

		nodes[i] = api.NodePlan{
			Name:           p.Node,
			Host:           p.Host.Label,
			PublicAddress:  p.Host.PublicAddress,
			PrivateAddress: p.Host.PrivateAddress,
			P2PPort:        p.P2PPort,
			APIPort:        p.APIPort,
			VisPort:        p.VisPort,
			Peers:          peers,
			Command:        node.Command,
		}
	}
	return api.PlanResponse{Nodes: nodes}
}
