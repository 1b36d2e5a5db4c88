// Package cachefile defines the on-disk wallet cache format and how it is
// read and written.
package cachefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// Version is the only cache format version this package reads and writes.
const Version = 1

// NativeBalanceKey is the balances key of a chain's native asset in the file.
// It is part of the format and must not change.
const NativeBalanceKey = "null"

// ErrUnsupportedVersion is wrapped by ParseError when the version field is not Version.
var ErrUnsupportedVersion = errors.New("cachefile: unsupported version")

// ParseError reports a cache file that is malformed or fails validation.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cachefile: %s: %v", e.Reason, e.Err)
	}
	return "cachefile: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// File is the whole cache: the wallets seen at last save and the tokens they
// enable, keyed by plugin id and then token id.
type File struct {
	Version int                                `json:"version"`
	Tokens  map[string]map[string]models.Token `json:"tokens"`
	Wallets []CachedWallet                     `json:"wallets"`
}

// CachedWallet is the last known public state of one wallet.
type CachedWallet struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Name             *string           `json:"name,omitempty"`
	PluginID         string            `json:"pluginId"`
	FiatCurrencyCode string            `json:"fiatCurrencyCode"`
	Balances         map[string]string `json:"balances"`
	EnabledTokenIDs  []string          `json:"enabledTokenIds"`
	OtherMethodNames []string          `json:"otherMethodNames,omitempty"`
}

// TokenIDFromBalanceKey maps a file balance key to an in-memory token id.
func TokenIDFromBalanceKey(key string) string {
	if key == NativeBalanceKey {
		return models.NativeTokenID
	}
	return key
}

// BalanceKeyFromTokenID maps an in-memory token id to a file balance key.
func BalanceKeyFromTokenID(tokenID string) string {
	if tokenID == models.NativeTokenID {
		return NativeBalanceKey
	}
	return tokenID
}

type rawFile struct {
	Version *int                                `json:"version"`
	Tokens  *map[string]map[string]models.Token `json:"tokens"`
	Wallets *[]rawWallet                        `json:"wallets"`
}

type rawWallet struct {
	ID               string             `json:"id"`
	Type             string             `json:"type"`
	Name             *string            `json:"name"`
	PluginID         string             `json:"pluginId"`
	FiatCurrencyCode *string            `json:"fiatCurrencyCode"`
	Balances         *map[string]string `json:"balances"`
	EnabledTokenIDs  *[]string          `json:"enabledTokenIds"`
	OtherMethodNames []string           `json:"otherMethodNames"`
}

// Parse decodes and validates a cache file. It never returns a partial result.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Reason: "invalid json", Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &ParseError{Reason: "trailing data", Err: err}
	}
	if raw.Version == nil {
		return nil, &ParseError{Reason: "missing version"}
	}
	if *raw.Version != Version {
		return nil, &ParseError{
			Reason: fmt.Sprintf("version %d", *raw.Version),
			Err:    ErrUnsupportedVersion,
		}
	}
	if raw.Tokens == nil {
		return nil, &ParseError{Reason: "missing tokens"}
	}
	if raw.Wallets == nil {
		return nil, &ParseError{Reason: "missing wallets"}
	}

	f := &File{
		Version: Version,
		Tokens:  *raw.Tokens,
		Wallets: make([]CachedWallet, 0, len(*raw.Wallets)),
	}
	for i, rw := range *raw.Wallets {
		w, err := rw.validate()
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("wallets[%d]", i), Err: err}
		}
		f.Wallets = append(f.Wallets, w)
	}
	if err := validateTokens(f.Tokens); err != nil {
		return nil, &ParseError{Reason: "tokens", Err: err}
	}
	return f, nil
}

func (rw rawWallet) validate() (CachedWallet, error) {
	switch {
	case rw.ID == "":
		return CachedWallet{}, errors.New("missing id")
	case rw.Type == "":
		return CachedWallet{}, errors.New("missing type")
	case rw.PluginID == "":
		return CachedWallet{}, errors.New("missing pluginId")
	case rw.FiatCurrencyCode == nil:
		return CachedWallet{}, errors.New("missing fiatCurrencyCode")
	case rw.Balances == nil:
		return CachedWallet{}, errors.New("missing balances")
	case rw.EnabledTokenIDs == nil:
		return CachedWallet{}, errors.New("missing enabledTokenIds")
	}
	for key, amount := range *rw.Balances {
		if _, err := decimal.NewFromString(amount); err != nil {
			return CachedWallet{}, fmt.Errorf("balance %q: %w", key, err)
		}
	}
	return CachedWallet{
		ID:               rw.ID,
		Type:             rw.Type,
		Name:             rw.Name,
		PluginID:         rw.PluginID,
		FiatCurrencyCode: *rw.FiatCurrencyCode,
		Balances:         *rw.Balances,
		EnabledTokenIDs:  *rw.EnabledTokenIDs,
		OtherMethodNames: rw.OtherMethodNames,
	}, nil
}

func validateTokens(tokens map[string]map[string]models.Token) error {
	for pluginID, byID := range tokens {
		for tokenID, token := range byID {
			if token.CurrencyCode == "" {
				return fmt.Errorf("%s/%s: missing currencyCode", pluginID, tokenID)
			}
			for _, d := range token.Denominations {
				if _, err := decimal.NewFromString(d.Multiplier); err != nil {
					return fmt.Errorf("%s/%s: denomination %q: %w", pluginID, tokenID, d.Name, err)
				}
			}
		}
	}
	return nil
}

// Marshal encodes a cache file. Map keys are sorted, so equal files encode to
// equal bytes.
func Marshal(f *File) ([]byte, error) {
	out := File{
		Version: Version,
		Tokens:  f.Tokens,
		Wallets: make([]CachedWallet, len(f.Wallets)),
	}
	copy(out.Wallets, f.Wallets)
	if out.Tokens == nil {
		out.Tokens = map[string]map[string]models.Token{}
	}
	for i := range out.Wallets {
		if out.Wallets[i].Balances == nil {
			out.Wallets[i].Balances = map[string]string{}
		}
		if out.Wallets[i].EnabledTokenIDs == nil {
			out.Wallets[i].EnabledTokenIDs = []string{}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal cache file: %w", err)
	}
	return data, nil
}
