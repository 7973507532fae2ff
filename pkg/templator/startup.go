package templator

import (
	"bytes"
	"fmt"
)

// DefaultStartupTemplate launches one node with its own databases, keys, peers and funding addresses.
// The visualization port is allocated but no longer passed to the node.
const DefaultStartupTemplate = `
{{.BinaryPath}} --p2p {{.IP}}:{{.P2PPort}} --api {{.IP}}:{{.APIPort}} --blockdb {{.DataDir}}/{{.Name}}-blockdb.rocksdb --blockchaindb {{.DataDir}}/{{.Name}}-blockchaindb.rocksdb --utxodb {{.DataDir}}/{{.Name}}-utxodb.rocksdb --walletdb {{.DataDir}}/{{.Name}}-wallet.rocksdb -vv {{.LoadKeyOpt}} {{.PeerOpt}} {{.FundOpt}} {{.ExtraFlags}}
`

// StartupVars are the placeholders available to a startup template.
type StartupVars struct {
	Name       string
	IP         string
	P2PPort    int
	APIPort    int
	VisPort    int
	PeerOpt    string
	LoadKeyOpt string
	FundOpt    string
	BinaryPath string
	DataDir    string
	ExtraFlags string
}

// RenderCommand renders the named template and trims surrounding whitespace.
func (e *Engine) RenderCommand(name string, vars StartupVars) (string, error) {
	out, err := e.RenderToBytes(name, vars)
	if err != nil {
		return "", err
	}

	command := string(bytes.TrimSpace(out))
	if command == "" {
		return "", fmt.Errorf("template %s rendered an empty command for node %s", name, vars.Name)
	}
	return command, nil
}
