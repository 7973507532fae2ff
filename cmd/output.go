package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/terabiome/testbed/internal/api"
	"github.com/terabiome/testbed/internal/manifest"
)

func renderPlan(w io.Writer, plan api.PlanResponse) error {
	table := tablewriter.NewWriter(w)
	table.Header("Node", "Host", "Private Address", "P2P", "API", "Vis", "Peers")
	for _, node := range plan.Nodes {
		if err := table.Append([]string{
			node.Name,
			node.Host,
			node.PrivateAddress,
			strconv.Itoa(node.P2PPort),
			strconv.Itoa(node.APIPort),
			strconv.Itoa(node.VisPort),
			strings.Join(node.Peers, " "),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderManifest(w io.Writer, entries []manifest.Entry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Node", "Host", "Public Address", "Private Address", "P2P", "API", "Vis")
	for _, entry := range entries {
		if err := table.Append([]string{
			entry.Name,
			entry.Host,
			entry.PublicAddress,
			entry.PrivateAddress,
			strconv.Itoa(entry.P2PPort),
			strconv.Itoa(entry.APIPort),
			strconv.Itoa(entry.VisPort),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
