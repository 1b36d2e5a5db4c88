// Package currency defines the capability interfaces a currency engine exposes.
// Real engines and cached stand-ins implement the same interfaces, so callers
// (and any transport that forwards them) never need to know which one they hold.
package currency

import (
	"context"
	"sort"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/storage"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// OtherMethod is a plugin-defined method outside the standard wallet surface.
type OtherMethod func(ctx context.Context, args ...any) (any, error)

// OtherMethods is the named-method escape hatch of a wallet or config.
// Transports forward it as a method table, never as plain data.
type OtherMethods map[string]OtherMethod

// Names returns the method names in sorted order.
func (m OtherMethods) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransactionStream pages through a wallet's transaction history.
type TransactionStream interface {
	// Next returns the next batch, or io.EOF once the history is exhausted.
	Next(ctx context.Context) ([]models.Transaction, error)
	Close() error
}

// Config is a currency plugin's configuration object.
type Config interface {
	PluginID() string
	CurrencyInfo() models.CurrencyInfo
	AllTokens() map[string]models.Token
	BuiltinTokens() map[string]models.Token
	CustomTokens() map[string]models.Token
	AlwaysEnabledTokenIDs() []string
	UserSettings() map[string]any
	OtherMethods() OtherMethods

	GetTokenID(ctx context.Context, token models.Token) (string, error)
	AddCustomToken(ctx context.Context, token models.Token) (string, error)
	ChangeCustomToken(ctx context.Context, tokenID string, token models.Token) error
	RemoveCustomToken(ctx context.Context, tokenID string) error
	ChangeAlwaysEnabledTokenIDs(ctx context.Context, tokenIDs []string) error
	ChangeUserSettings(ctx context.Context, settings map[string]any) error
	ImportKey(ctx context.Context, userInput string) (map[string]any, error)
}

// Wallet is a live currency wallet.
type Wallet interface {
	// Identity and cached-safe state.
	ID() string
	Type() string
	Name() string
	FiatCurrencyCode() string
	BalanceMap() map[string]string
	Balances() map[string]string
	EnabledTokenIDs() []string
	PublicWalletInfo() models.PublicWalletInfo
	CurrencyConfig() Config
	CurrencyInfo() models.CurrencyInfo
	Paused() bool
	StakingStatus() models.StakingStatus
	SyncRatio() float64
	NativeToDenomination(nativeAmount, currencyCode string) (string, error)
	DenominationToNative(amount, currencyCode string) (string, error)

	// Storage and escape hatch.
	Disklet() storage.Disklet
	LocalDisklet() storage.Disklet
	OtherMethods() OtherMethods

	// Engine operations.
	GetTransactions(ctx context.Context, opts models.TransactionOptions) ([]models.Transaction, error)
	StreamTransactions(ctx context.Context, opts models.StreamOptions) (TransactionStream, error)
	GetReceiveAddress(ctx context.Context, opts models.ReceiveAddressOptions) (models.ReceiveAddress, error)
	GetAddresses(ctx context.Context, tokenID string) ([]models.AddressInfo, error)
	GetMaxSpendable(ctx context.Context, spend models.SpendInfo) (string, error)
	MakeSpend(ctx context.Context, spend models.SpendInfo) (*models.Transaction, error)
	SignTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	BroadcastTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	SaveTx(ctx context.Context, tx *models.Transaction) error
	SaveTxMetadata(ctx context.Context, opts models.SaveTxMetadataOptions) error
	SignMessage(ctx context.Context, message string, opts models.SignMessageOptions) (string, error)
	ParseURI(ctx context.Context, uri string) (models.ParsedURI, error)
	EncodeURI(ctx context.Context, opts models.EncodeURIOptions) (string, error)
	AccelerateTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	ResyncBlockchain(ctx context.Context) error
	DumpData(ctx context.Context) (models.DataDump, error)

	// Settings.
	RenameWallet(ctx context.Context, name string) error
	SetFiatCurrencyCode(ctx context.Context, code string) error
	ChangeEnabledTokenIDs(ctx context.Context, tokenIDs []string) error
	ChangePaused(ctx context.Context, paused bool) error
	LockReceiveAddress(ctx context.Context, addr models.ReceiveAddress) error
	ChangeWalletSettings(ctx context.Context, settings map[string]any) error
}

// Account is the view of a logged-in account the cache saver reads.
// Methods fail once the account has been torn down.
type Account interface {
	ActiveWalletIDs() ([]string, error)
	CurrencyWallets() (map[string]Wallet, error)
	CurrencyConfigs() (map[string]Config, error)
}
