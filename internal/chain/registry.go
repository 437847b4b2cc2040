package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Network is one entry of the chain registry.
type Network struct {
	ChainID  uint64 `json:"-"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Explorer string `json:"explorer,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
}

// TxLink returns the explorer page for hash, or "" when the network has no
// explorer configured.
func (n Network) TxLink(hash common.Hash) string {
	if n.Explorer == "" {
		return ""
	}
	return strings.TrimRight(n.Explorer, "/") + "/tx/" + hash.Hex()
}

// AddressLink returns the explorer page for addr.
func (n Network) AddressLink(addr common.Address) string {
	if n.Explorer == "" {
		return ""
	}
	return strings.TrimRight(n.Explorer, "/") + "/address/" + addr.Hex()
}

// Well-known chain ids.
const (
	Mainnet  uint64 = 1
	Sepolia  uint64 = 11155111
	Polygon  uint64 = 137
	Base     uint64 = 8453
	Arbitrum uint64 = 42161
)

// DefaultNetworks is used when no chains.json exists.
func DefaultNetworks() []Network {
	return []Network{
		{ChainID: Mainnet, Name: "Ethereum", URL: "https://ethereum-rpc.publicnode.com", Explorer: "https://etherscan.io", Symbol: "ETH"},
		{ChainID: Sepolia, Name: "Sepolia", URL: "https://ethereum-sepolia-rpc.publicnode.com", Explorer: "https://sepolia.etherscan.io", Symbol: "ETH"},
		{ChainID: Polygon, Name: "Polygon", URL: "https://polygon-rpc.com", Explorer: "https://polygonscan.com", Symbol: "POL"},
		{ChainID: Base, Name: "Base", URL: "https://mainnet.base.org", Explorer: "https://basescan.org", Symbol: "ETH"},
		{ChainID: Arbitrum, Name: "Arbitrum One", URL: "https://arb1.arbitrum.io/rpc", Explorer: "https://arbiscan.io", Symbol: "ETH"},
	}
}

// Registry is the read-only set of known networks, keyed by chain id.
type Registry struct {
	networks map[uint64]Network
}

// NewRegistry builds a registry from networks. Later duplicates win.
func NewRegistry(networks []Network) *Registry {
	r := &Registry{networks: make(map[uint64]Network, len(networks))}
	for _, n := range networks {
		if n.Symbol == "" {
			n.Symbol = "ETH"
		}
		r.networks[n.ChainID] = n
	}
	return r
}

// DefaultRegistry returns the built-in networks.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultNetworks())
}

// LoadRegistry reads a chains.json file. A missing file yields the defaults.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path resolved from config
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chain registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes {"<chain id>": {"name", "url", "explorer", "symbol"}}.
func ParseRegistry(data []byte) (*Registry, error) {
	var raw map[string]Network
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrConfigInvalid, err)
	}
	if len(raw) == 0 {
		return nil, satchelerr.WithDetails(satchelerr.ErrConfigInvalid, map[string]string{"chains": "no networks defined"})
	}

	networks := make([]Network, 0, len(raw))
	for key, n := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil || id == 0 {
			return nil, satchelerr.WithDetails(satchelerr.ErrConfigInvalid, map[string]string{"chain_id": key})
		}
		if strings.TrimSpace(n.Name) == "" || strings.TrimSpace(n.URL) == "" {
			return nil, satchelerr.WithDetails(satchelerr.ErrConfigInvalid, map[string]string{
				"chain_id": key,
				"reason":   "name and url are required",
			})
		}
		n.ChainID = id
		networks = append(networks, n)
	}
	return NewRegistry(networks), nil
}

// Network looks up a chain id.
func (r *Registry) Network(chainID uint64) (Network, error) {
	n, ok := r.networks[chainID]
	if !ok {
		return Network{}, satchelerr.WithDetails(satchelerr.ErrNetworkNotFound, map[string]string{
			"chain_id": strconv.FormatUint(chainID, 10),
		})
	}
	return n, nil
}

// Networks returns every network sorted by chain id.
func (r *Registry) Networks() []Network {
	out := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Marshal encodes the registry in chains.json form.
func (r *Registry) Marshal() ([]byte, error) {
	raw := make(map[string]Network, len(r.networks))
	for id, n := range r.networks {
		raw[strconv.FormatUint(id, 10)] = n
	}
	return json.MarshalIndent(raw, "", "  ")
}
