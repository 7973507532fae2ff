package constants

const (
	TemplateStartup = "startup"

	KeyFileExtension     = ".pkcs8"
	FundingTokenFileName = "fund_addr.txt"
	StartupScriptExt     = ".sh"

	FundAddrFlag = "--fund-addr"
	LoadKeyFlag  = "--load-key"
	PeerFlag     = "-c"

	DefaultBasePort = 6000

	// MaxKeySlots and MaxNodes bound a single placement run.
	MaxKeySlots = 1024
	MaxNodes    = 10000
)

// DefaultExtraNodeFlags are appended to every rendered startup command.
const DefaultExtraNodeFlags = "--fund-coins=18446744073709551615 --mempool-size=50000 --tx-throughput=36000 --tx-block-size=106600 --proposer-mining-rate=0.08 --voter-mining-rate=0.08"
