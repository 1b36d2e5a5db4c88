// Package engine is an in-memory currency engine for Bitcoin, Ethereum and
// TRON. Keys are real BIP-44 keys; the chain is simulated. It backs the demo
// command and exercises the cache against real wallet behaviour.
package engine

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// Plugin describes one supported chain.
type Plugin struct {
	Info models.CurrencyInfo
	// CoinType is the BIP-44 coin type.
	CoinType uint32
	// Tokens are the builtin tokens, keyed by token id.
	Tokens map[string]models.Token
	// NetworkFee is the flat fee of a spend, in native units.
	NetworkFee string
	// BlockTime is how often the simulated chain produces a block.
	BlockTime time.Duration
	URIScheme string

	codec  addressCodec
	txHash func(payload []byte) string
}

// Plugin ids.
const (
	PluginBitcoin  = "bitcoin"
	PluginEthereum = "ethereum"
	PluginTron     = "tron"
)

// Plugins returns the supported plugins keyed by plugin id. Each call
// returns fresh values.
func Plugins() map[string]*Plugin {
	return map[string]*Plugin{
		PluginBitcoin: {
			Info: models.CurrencyInfo{
				PluginID:     PluginBitcoin,
				WalletType:   "wallet:bitcoin",
				CurrencyCode: "BTC",
				DisplayName:  "Bitcoin",
				Denominations: []models.Denomination{
					{Name: "BTC", Multiplier: "100000000", Symbol: "₿"},
					{Name: "mBTC", Multiplier: "100000"},
					{Name: "bits", Multiplier: "100"},
				},
			},
			CoinType:   0,
			Tokens:     map[string]models.Token{},
			NetworkFee: "10000", // 10000 satoshi
			BlockTime:  10 * time.Minute,
			URIScheme:  "bitcoin",
			codec:      btcCodec{},
			txHash:     func(p []byte) string { return hex.EncodeToString(doubleSHA256(p)) },
		},
		PluginEthereum: {
			Info: models.CurrencyInfo{
				PluginID:     PluginEthereum,
				WalletType:   "wallet:ethereum",
				CurrencyCode: "ETH",
				DisplayName:  "Ethereum",
				Denominations: []models.Denomination{
					{Name: "ETH", Multiplier: "1000000000000000000", Symbol: "Ξ"},
					{Name: "gwei", Multiplier: "1000000000"},
				},
			},
			CoinType: 60,
			Tokens: tokenTable(
				contractToken("USDC", "USD Coin", "1000000", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
				contractToken("USDT", "Tether", "1000000", "0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			),
			NetworkFee: "420000000000000", // 21000 gas * 20 gwei
			BlockTime:  12 * time.Second,
			URIScheme:  "ethereum",
			codec:      ethCodec{},
			txHash:     func(p []byte) string { return "0x" + hex.EncodeToString(keccak256(p)) },
		},
		PluginTron: {
			Info: models.CurrencyInfo{
				PluginID:     PluginTron,
				WalletType:   "wallet:tron",
				CurrencyCode: "TRX",
				DisplayName:  "TRON",
				Denominations: []models.Denomination{
					{Name: "TRX", Multiplier: "1000000"},
				},
			},
			CoinType: 195,
			Tokens: tokenTable(
				contractToken("USDT", "Tether", "1000000", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),
			),
			NetworkFee: "1000000", // 1 TRX bandwidth
			BlockTime:  3 * time.Second,
			URIScheme:  "tron",
			codec:      trxCodec{},
			txHash:     func(p []byte) string { return hex.EncodeToString(keccak256(p)) },
		},
	}
}

// CurrencyInfos returns the currency info of every plugin keyed by plugin id.
func CurrencyInfos() map[string]models.CurrencyInfo {
	out := map[string]models.CurrencyInfo{}
	for id, p := range Plugins() {
		out[id] = p.Info
	}
	return out
}

// PluginIDs returns the plugin ids in sorted order.
func PluginIDs() []string {
	ids := make([]string, 0, 3)
	for id := range Plugins() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateAddress checks that addr is an address of this chain.
func (p *Plugin) ValidateAddress(addr string) error {
	return p.codec.Validate(addr)
}

func contractToken(code, name, multiplier, contract string) models.Token {
	return models.Token{
		CurrencyCode:    code,
		DisplayName:     name,
		Denominations:   []models.Denomination{{Name: code, Multiplier: multiplier}},
		NetworkLocation: map[string]any{"contractAddress": contract},
	}
}

func tokenTable(tokens ...models.Token) map[string]models.Token {
	out := make(map[string]models.Token, len(tokens))
	for _, t := range tokens {
		out[tokenIDFor(t)] = t
	}
	return out
}

// tokenIDFor derives a token id: the lowercased contract address, or the
// lowercased currency code for tokens without one.
func tokenIDFor(t models.Token) string {
	if addr, ok := t.ContractAddress(); ok {
		return strings.ToLower(addr)
	}
	return strings.ToLower(t.CurrencyCode)
}

// LookupPlugin returns the plugin with the given id.
func LookupPlugin(pluginID string) (*Plugin, error) {
	p, ok := Plugins()[pluginID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginUnknown, pluginID)
	}
	return p, nil
}
