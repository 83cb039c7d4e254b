package chains

import (
	"fmt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"net/url"
	"strings"
)

type Blockchain struct {
	ID    int64
	IDHex string
	Name  string
}

var (
	// 与frame支持的网络保持一致，顺序即展示顺序
	Array = []*Blockchain{
		{ID: 1, Name: "ethereum"},
		{ID: 5, Name: "goerli"},
		{ID: 11155111, Name: "sepolia"},
		{ID: 10, Name: "optimism"},
		{ID: 420, Name: "optimism goerli"},
		{ID: 42161, Name: "arbitrum"},
		{ID: 421613, Name: "arbitrum goerli"},
		{ID: 137, Name: "polygon"},
		{ID: 80001, Name: "mumbai"},
		{ID: 42220, Name: "celo"},
		{ID: 1313161554, Name: "aurora"},
		{ID: 1313161555, Name: "aurora testnet"},
		{ID: 56, Name: "bsc"},
		{ID: 97, Name: "bsc testnet"},
		{ID: 43114, Name: "avalanche"},
		{ID: 43113, Name: "avalanche testnet"},
		{ID: 324, Name: "zksync era"},
		{ID: 280, Name: "zksync era testnet"},
		{ID: 100, Name: "gnosis"},
		{ID: 8453, Name: "base"},
		{ID: 84531, Name: "base goerli"},
		{ID: 7777777, Name: "zora"},
		{ID: 999, Name: "zora testnet"},
	}

	Mapping = map[int64]*Blockchain{}
)

// nolint:gochecknoinits
func init() {
	for _, c := range Array {
		c.IDHex = hexutil.EncodeUint64(uint64(c.ID))
		Mapping[c.ID] = c
	}
}

// Supported reports whether the frame can serve chainID.
func Supported(chainID int64) bool {
	_, ok := Mapping[chainID]
	return ok
}

const (
	DefaultChainID int64 = 1

	defaultAPIURL    = "https://rpc.walletconnect.com"
	restrictedAPIURL = "https://rpc.walletconnect.org"
)

// 以下时区无法访问默认域名
var restrictedTimezones = []string{
	"asia/shanghai",
	"asia/urumqi",
	"asia/chongqing",
	"asia/harbin",
	"asia/kashgar",
	"asia/macau",
	"asia/hong_kong",
	"asia/macao",
	"asia/beijing",
}

// BlockchainAPIURL picks the rpc host reachable from the given IANA timezone.
func BlockchainAPIURL(timezone string) string {
	zone := strings.ToLower(strings.TrimSpace(timezone))
	for _, z := range restrictedTimezones {
		if zone == z {
			return restrictedAPIURL
		}
	}
	return defaultAPIURL
}

type Network struct {
	RPCURL  string `json:"rpcUrl"`
	ChainID int64  `json:"chainId"`
}

type NetworkMap map[int64]Network

// Networks derives the rpc endpoint of every supported chain. The result is
// rebuilt on each call.
func Networks(baseURL, projectID string) NetworkMap {
	base := strings.TrimRight(baseURL, "/")
	networks := make(NetworkMap, len(Array))
	for _, c := range Array {
		networks[c.ID] = Network{
			RPCURL:  fmt.Sprintf("%s/v1/?chainId=eip155:%d&projectId=%s", base, c.ID, url.QueryEscape(projectID)),
			ChainID: c.ID,
		}
	}
	return networks
}
