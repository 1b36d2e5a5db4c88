package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/poller"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/storage"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// CachedSyncRatio is the sync ratio every cached wallet reports: partially
// loaded, so UIs show progress rather than 0% or 100%.
const CachedSyncRatio = 0.5

// WalletOptions wires a CachedWallet to its real counterpart.
type WalletOptions struct {
	// GetRealWallet returns the loaded wallet with the given id, or nil.
	// It is called concurrently and must not have side effects.
	GetRealWallet func(walletID string) currency.Wallet
	// OtherMethodNames lists the other methods to expose before the real
	// wallet loads.
	OtherMethodNames []string
	// Paused mirrors the login-time pause option.
	Paused       bool
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Logger       *slog.Logger
}

// CachedWallet stands in for a currency wallet whose engine is still loading.
// Identity, balances and tokens come from the cache; engine operations wait
// (bounded) for the real wallet and then call through to it; cosmetic
// mutators are ignored.
type CachedWallet struct {
	record     cachefile.CachedWallet
	config     *CachedConfig
	balanceMap map[string]string
	paused     bool

	getReal      func(walletID string) currency.Wallet
	real         *poller.Handle[currency.Wallet]
	otherMethods currency.OtherMethods

	disklet      *delegatingDisklet
	localDisklet *delegatingDisklet

	logger *slog.Logger
}

var _ currency.Wallet = (*CachedWallet)(nil)

// NewCachedWallet builds a cached wallet from its cache record.
func NewCachedWallet(record cachefile.CachedWallet, config *CachedConfig, opts WalletOptions) *CachedWallet {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	balanceMap := make(map[string]string, len(record.Balances))
	for key, amount := range record.Balances {
		balanceMap[cachefile.TokenIDFromBalanceKey(key)] = amount
	}

	w := &CachedWallet{
		record:     record,
		config:     config,
		balanceMap: balanceMap,
		paused:     opts.Paused,
		getReal:    opts.GetRealWallet,
		logger:     logger.With("component", "cached_wallet", "wallet_id", record.ID),
	}
	w.real = poller.New[currency.Wallet]("wallet "+record.ID, w.lookupReal,
		poller.WithInterval(opts.PollInterval),
		poller.WithTimeout(opts.WaitTimeout),
		poller.WithLogger(logger),
	)
	w.otherMethods = w.buildOtherMethods(opts.OtherMethodNames)
	w.disklet = newDelegatingDisklet(w, "disklet", currency.Wallet.Disklet)
	w.localDisklet = newDelegatingDisklet(w, "localDisklet", currency.Wallet.LocalDisklet)
	return w
}

// lookupReal never reports a cached wallet, itself included, as the real one.
func (w *CachedWallet) lookupReal() (currency.Wallet, bool) {
	if w.getReal == nil {
		return nil, false
	}
	real := w.getReal(w.record.ID)
	if real == nil {
		return nil, false
	}
	if _, cached := real.(*CachedWallet); cached {
		return nil, false
	}
	return real, true
}

func (w *CachedWallet) realWallet(ctx context.Context) (currency.Wallet, error) {
	if real, ok := w.real.TryGet(); ok {
		return real, nil
	}
	return w.real.WaitFor(ctx)
}

// Real returns the handle of the real wallet.
func (w *CachedWallet) Real() *poller.Handle[currency.Wallet] { return w.real }

// Close releases the real-wallet handle. Calls already waiting are not failed.
func (w *CachedWallet) Close() { w.real.Close() }

// Record returns the cache record the wallet was built from.
func (w *CachedWallet) Record() cachefile.CachedWallet { return w.record }

func (w *CachedWallet) ID() string { return w.record.ID }

func (w *CachedWallet) Type() string { return w.record.Type }

func (w *CachedWallet) Name() string {
	if w.record.Name == nil {
		return ""
	}
	return *w.record.Name
}

func (w *CachedWallet) FiatCurrencyCode() string { return w.record.FiatCurrencyCode }

// BalanceMap returns balances keyed by token id; the native asset is under
// models.NativeTokenID.
func (w *CachedWallet) BalanceMap() map[string]string { return maps.Clone(w.balanceMap) }

// Balances returns balances keyed by currency code. Tokens the cached config
// does not know are left out.
func (w *CachedWallet) Balances() map[string]string {
	out := make(map[string]string, len(w.balanceMap))
	tokens := w.config.tokens
	for tokenID, amount := range w.balanceMap {
		if tokenID == models.NativeTokenID {
			out[w.config.info.CurrencyCode] = amount
			continue
		}
		if token, ok := tokens[tokenID]; ok {
			out[token.CurrencyCode] = amount
		}
	}
	return out
}

func (w *CachedWallet) EnabledTokenIDs() []string {
	if w.record.EnabledTokenIDs == nil {
		return []string{}
	}
	return slices.Clone(w.record.EnabledTokenIDs)
}

func (w *CachedWallet) PublicWalletInfo() models.PublicWalletInfo {
	return models.PublicWalletInfo{
		ID:   w.record.ID,
		Type: w.record.Type,
		Keys: map[string]any{},
	}
}

func (w *CachedWallet) CurrencyConfig() currency.Config { return w.config }

func (w *CachedWallet) CurrencyInfo() models.CurrencyInfo { return w.config.info }

func (w *CachedWallet) Paused() bool { return w.paused }

func (w *CachedWallet) StakingStatus() models.StakingStatus {
	return models.StakingStatus{StakedAmounts: []models.StakedAmount{}}
}

func (w *CachedWallet) SyncRatio() float64 { return CachedSyncRatio }

// NativeToDenomination converts a native amount to the named denomination.
func (w *CachedWallet) NativeToDenomination(nativeAmount, currencyCode string) (string, error) {
	multiplier, err := w.multiplier(currencyCode)
	if err != nil {
		return "", err
	}
	native, err := decimal.NewFromString(nativeAmount)
	if err != nil {
		return "", fmt.Errorf("native amount %q: %w", nativeAmount, err)
	}
	return native.Div(multiplier).String(), nil
}

// DenominationToNative converts an amount in the named denomination to a
// native amount, dropping sub-native fractions.
func (w *CachedWallet) DenominationToNative(amount, currencyCode string) (string, error) {
	multiplier, err := w.multiplier(currencyCode)
	if err != nil {
		return "", err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", amount, err)
	}
	return value.Mul(multiplier).Truncate(0).String(), nil
}

func (w *CachedWallet) multiplier(currencyCode string) (decimal.Decimal, error) {
	denominations := w.config.info.Denominations
	for _, token := range w.config.tokens {
		denominations = append(slices.Clip(denominations), token.Denominations...)
	}
	for _, d := range denominations {
		if d.Name != currencyCode {
			continue
		}
		m, err := decimal.NewFromString(d.Multiplier)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("denomination %s: %w", d.Name, err)
		}
		if m.IsZero() {
			return decimal.Decimal{}, fmt.Errorf("denomination %s: zero multiplier", d.Name)
		}
		return m, nil
	}
	return decimal.Decimal{}, fmt.Errorf("unknown denomination %q", currencyCode)
}

func (w *CachedWallet) Disklet() storage.Disklet { return w.disklet }

func (w *CachedWallet) LocalDisklet() storage.Disklet { return w.localDisklet }

// Cosmetic mutators have no meaning on a placeholder. They log and succeed so
// UIs that call them opportunistically keep working.

func (w *CachedWallet) RenameWallet(ctx context.Context, name string) error {
	w.logger.Warn("ignoring rename on cached wallet")
	return nil
}

func (w *CachedWallet) SetFiatCurrencyCode(ctx context.Context, code string) error {
	w.logger.Warn("ignoring fiat currency change on cached wallet", "code", code)
	return nil
}

func (w *CachedWallet) ChangeEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	w.logger.Warn("ignoring enabled token change on cached wallet", "tokens", len(tokenIDs))
	return nil
}

func (w *CachedWallet) ChangePaused(ctx context.Context, paused bool) error {
	w.logger.Warn("ignoring pause change on cached wallet", "paused", paused)
	return nil
}

func (w *CachedWallet) LockReceiveAddress(ctx context.Context, addr models.ReceiveAddress) error {
	w.logger.Warn("ignoring receive address lock on cached wallet")
	return nil
}

func (w *CachedWallet) ChangeWalletSettings(ctx context.Context, settings map[string]any) error {
	w.logger.Warn("ignoring wallet settings change on cached wallet")
	return nil
}
