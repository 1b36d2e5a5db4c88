package models

import "time"

// NativeTokenID is the token id of a chain's native asset.
const NativeTokenID = ""

// Denomination describes one display unit of a currency or token.
type Denomination struct {
	Name       string `json:"name"`
	Multiplier string `json:"multiplier"`
	Symbol     string `json:"symbol,omitempty"`
}

// Token describes a token a currency plugin knows about.
// NetworkLocation is opaque to this library except for the contract address.
type Token struct {
	CurrencyCode    string         `json:"currencyCode"`
	DisplayName     string         `json:"displayName"`
	Denominations   []Denomination `json:"denominations"`
	NetworkLocation map[string]any `json:"networkLocation,omitempty"`
}

// ContractAddress returns the contract address stored in the network location, if any.
func (t Token) ContractAddress() (string, bool) {
	if t.NetworkLocation == nil {
		return "", false
	}
	addr, ok := t.NetworkLocation["contractAddress"].(string)
	if !ok || addr == "" {
		return "", false
	}
	return addr, true
}

// CurrencyInfo is the static description of a currency plugin.
type CurrencyInfo struct {
	PluginID      string         `json:"pluginId"`
	WalletType    string         `json:"walletType"`
	CurrencyCode  string         `json:"currencyCode"`
	DisplayName   string         `json:"displayName"`
	Denominations []Denomination `json:"denominations"`
}

// PublicWalletInfo is the non-secret part of a wallet's key info.
type PublicWalletInfo struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Keys map[string]any `json:"keys"`
}

// StakingStatus lists the staked amounts of a wallet.
type StakingStatus struct {
	StakedAmounts []StakedAmount `json:"stakedAmounts"`
}

// StakedAmount is a single staked position.
type StakedAmount struct {
	NativeAmount string     `json:"nativeAmount"`
	UnlockDate   *time.Time `json:"unlockDate,omitempty"`
}

// Transaction is a wallet transaction as reported by an engine.
type Transaction struct {
	TxID                string         `json:"txid"`
	WalletID            string         `json:"walletId"`
	TokenID             string         `json:"tokenId"`
	CurrencyCode        string         `json:"currencyCode"`
	NativeAmount        string         `json:"nativeAmount"`
	NetworkFee          string         `json:"networkFee"`
	OurReceiveAddresses []string       `json:"ourReceiveAddresses"`
	BlockHeight         uint64         `json:"blockHeight"`
	Date                time.Time      `json:"date"`
	Signed              bool           `json:"signed"`
	SignedTx            string         `json:"signedTx,omitempty"`
	Metadata            *TxMetadata    `json:"metadata,omitempty"`
	OtherParams         map[string]any `json:"otherParams,omitempty"`
}

// TxMetadata is user-supplied transaction metadata.
type TxMetadata struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// TransactionOptions filters a transaction history query.
type TransactionOptions struct {
	TokenID     string
	StartDate   *time.Time
	EndDate     *time.Time
	SearchQuery string
	Limit       int
}

// StreamOptions configures a paged transaction stream.
type StreamOptions struct {
	TokenID   string
	BatchSize int
}

// SpendTarget is one output of a spend.
type SpendTarget struct {
	PublicAddress string `json:"publicAddress"`
	NativeAmount  string `json:"nativeAmount"`
	Memo          string `json:"memo,omitempty"`
}

// SpendInfo describes a spend to build.
type SpendInfo struct {
	TokenID      string         `json:"tokenId"`
	SpendTargets []SpendTarget  `json:"spendTargets"`
	NetworkFee   string         `json:"networkFee,omitempty"`
	Metadata     *TxMetadata    `json:"metadata,omitempty"`
	OtherParams  map[string]any `json:"otherParams,omitempty"`
}

// ReceiveAddressOptions selects the address to issue.
type ReceiveAddressOptions struct {
	TokenID    string
	ForceIndex *uint32
}

// ReceiveAddress is an address issued by an engine.
type ReceiveAddress struct {
	PublicAddress string      `json:"publicAddress"`
	SegwitAddress string      `json:"segwitAddress,omitempty"`
	LegacyAddress string      `json:"legacyAddress,omitempty"`
	NativeAmount  string      `json:"nativeAmount,omitempty"`
	Metadata      *TxMetadata `json:"metadata,omitempty"`
}

// AddressInfo is one of the wallet's known addresses.
type AddressInfo struct {
	AddressType   string `json:"addressType"`
	PublicAddress string `json:"publicAddress"`
}

// SaveTxMetadataOptions updates the metadata of a saved transaction.
type SaveTxMetadataOptions struct {
	TxID     string
	TokenID  string
	Metadata TxMetadata
}

// SignMessageOptions configures message signing.
type SignMessageOptions struct {
	OtherParams map[string]any
}

// ParsedURI is the result of parsing a payment URI.
type ParsedURI struct {
	PublicAddress string `json:"publicAddress,omitempty"`
	NativeAmount  string `json:"nativeAmount,omitempty"`
	TokenID       string `json:"tokenId,omitempty"`
	Label         string `json:"label,omitempty"`
	Message       string `json:"message,omitempty"`
}

// EncodeURIOptions describes a payment URI to build.
type EncodeURIOptions struct {
	PublicAddress string
	NativeAmount  string
	Label         string
	Message       string
}

// DataDump is an engine's debugging snapshot.
type DataDump struct {
	WalletID   string         `json:"walletId"`
	WalletType string         `json:"walletType"`
	Data       map[string]any `json:"data"`
}
