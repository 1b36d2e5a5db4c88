package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tyler-smith/go-bip39"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/periodic"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/storage"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// WalletOptions configures NewWallet.
type WalletOptions struct {
	// ID defaults to a random UUID.
	ID               string
	Name             string
	FiatCurrencyCode string
	Mnemonic         string
	// SyncInterval defaults to the plugin's block time.
	SyncInterval time.Duration
	// OnChange is called after anything the wallet cache keeps changes.
	OnChange func(walletID string)
	// Broadcast sends a signed transaction to the network. Nil accepts
	// every transaction.
	Broadcast BroadcastFunc
	// BroadcastRetries is the number of broadcast attempts.
	BroadcastRetries int
	// RetryBackoff is the base backoff between broadcast attempts.
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

// Wallet is a live wallet of one plugin.
type Wallet struct {
	id       string
	plugin   *Plugin
	config   *Config
	seed     []byte
	onChange func(string)
	logger   *slog.Logger
	sync     *periodic.Task
	sender   *sender

	disklet      *storage.MemoryDisklet
	localDisklet *storage.MemoryDisklet

	mu          sync.RWMutex
	name        string
	fiat        string
	balances    map[string]decimal.Decimal
	enabled     []string
	paused      bool
	settings    map[string]any
	syncRatio   float64
	blockHeight uint64
	nextIndex   uint32
	nonce       uint64
	txs         []models.Transaction
}

var _ currency.Wallet = (*Wallet)(nil)

// NewWallet builds a wallet from a mnemonic. The wallet does not sync until
// Start is called.
func NewWallet(config *Config, opts WalletOptions) (*Wallet, error) {
	if !bip39.IsMnemonicValid(opts.Mnemonic) {
		return nil, ErrInvalidKey
	}
	p := config.plugin
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	fiat := opts.FiatCurrencyCode
	if fiat == "" {
		fiat = "iso:USD"
	}
	interval := opts.SyncInterval
	if interval <= 0 {
		interval = p.BlockTime
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine", "plugin", p.Info.PluginID, "wallet_id", id)

	w := &Wallet{
		id:           id,
		plugin:       p,
		config:       config,
		seed:         bip39.NewSeed(opts.Mnemonic, ""),
		onChange:     opts.OnChange,
		logger:       logger,
		disklet:      storage.NewMemoryDisklet(),
		localDisklet: storage.NewMemoryDisklet(),
		name:         opts.Name,
		fiat:         fiat,
		balances:     map[string]decimal.Decimal{models.NativeTokenID: decimal.Zero},
		enabled:      []string{},
		settings:     map[string]any{},
	}
	w.sender = newSender(opts.Broadcast, opts.BroadcastRetries, opts.RetryBackoff, logger)
	w.sync = periodic.New(w.syncBlock, interval,
		periodic.WithLogger(logger),
		periodic.OnError(func(err error) {
			logger.Error("sync failed", "error", err)
		}),
	)
	return w, nil
}

// Start begins syncing. Paused wallets stay idle.
func (w *Wallet) Start() {
	if w.Paused() {
		return
	}
	w.sync.Start()
}

// Close stops syncing.
func (w *Wallet) Close() {
	w.sync.Stop()
}

// SetSyncInterval changes how often the wallet checks for new blocks.
func (w *Wallet) SetSyncInterval(d time.Duration) {
	w.sync.SetInterval(d)
}

func (w *Wallet) syncBlock() error {
	w.mu.Lock()
	w.blockHeight++
	first := w.syncRatio < 1
	w.syncRatio = 1
	height := w.blockHeight
	w.mu.Unlock()
	if first {
		w.logger.Info("wallet synced", "block_height", height)
	}
	return nil
}

func (w *Wallet) changed() {
	if w.onChange != nil {
		w.onChange(w.id)
	}
}

func (w *Wallet) ID() string { return w.id }

func (w *Wallet) Type() string { return w.plugin.Info.WalletType }

func (w *Wallet) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.name
}

func (w *Wallet) FiatCurrencyCode() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fiat
}

func (w *Wallet) BalanceMap() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]string, len(w.balances))
	for id, amount := range w.balances {
		out[id] = amount.String()
	}
	return out
}

func (w *Wallet) Balances() map[string]string {
	tokens := w.config.AllTokens()
	out := map[string]string{}
	for id, amount := range w.BalanceMap() {
		if id == models.NativeTokenID {
			out[w.plugin.Info.CurrencyCode] = amount
		} else if t, ok := tokens[id]; ok {
			out[t.CurrencyCode] = amount
		}
	}
	return out
}

func (w *Wallet) EnabledTokenIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.enabled)
}

func (w *Wallet) PublicWalletInfo() models.PublicWalletInfo {
	first, err := deriveAddress(w.plugin, w.seed, 0)
	keys := map[string]any{}
	if err == nil {
		keys["publicKey"] = first.PublicKey
	}
	return models.PublicWalletInfo{ID: w.id, Type: w.Type(), Keys: keys}
}

func (w *Wallet) CurrencyConfig() currency.Config { return w.config }

func (w *Wallet) CurrencyInfo() models.CurrencyInfo { return w.plugin.Info }

func (w *Wallet) Paused() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paused
}

func (w *Wallet) StakingStatus() models.StakingStatus {
	return models.StakingStatus{StakedAmounts: []models.StakedAmount{}}
}

func (w *Wallet) SyncRatio() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.syncRatio
}

// BlockHeight returns the last block the wallet synced.
func (w *Wallet) BlockHeight() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blockHeight
}

func (w *Wallet) NativeToDenomination(nativeAmount, currencyCode string) (string, error) {
	m, err := w.multiplier(currencyCode)
	if err != nil {
		return "", err
	}
	n, err := decimal.NewFromString(nativeAmount)
	if err != nil {
		return "", fmt.Errorf("native amount %q: %w", nativeAmount, err)
	}
	return n.Div(m).String(), nil
}

func (w *Wallet) DenominationToNative(amount, currencyCode string) (string, error) {
	m, err := w.multiplier(currencyCode)
	if err != nil {
		return "", err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", amount, err)
	}
	return a.Mul(m).Truncate(0).String(), nil
}

func (w *Wallet) multiplier(currencyCode string) (decimal.Decimal, error) {
	denoms := slices.Clone(w.plugin.Info.Denominations)
	for _, t := range w.config.AllTokens() {
		denoms = append(denoms, t.Denominations...)
	}
	for _, d := range denoms {
		if d.Name == currencyCode {
			return decimal.NewFromString(d.Multiplier)
		}
	}
	return decimal.Decimal{}, fmt.Errorf("unknown denomination %q", currencyCode)
}

func (w *Wallet) Disklet() storage.Disklet { return w.disklet }

func (w *Wallet) LocalDisklet() storage.Disklet { return w.localDisklet }

// OtherMethods exposes the derivation path of an address index and the
// current block height.
func (w *Wallet) OtherMethods() currency.OtherMethods {
	return currency.OtherMethods{
		"getDerivationPath": func(ctx context.Context, args ...any) (any, error) {
			var index uint32
			if len(args) > 0 {
				i, ok := args[0].(int)
				if !ok || i < 0 {
					return nil, fmt.Errorf("getDerivationPath: bad index %v", args[0])
				}
				index = uint32(i)
			}
			return derivationPath(w.plugin.CoinType, index), nil
		},
		"getBlockHeight": func(ctx context.Context, args ...any) (any, error) {
			return w.BlockHeight(), nil
		},
	}
}

// Credit records an incoming payment, as if the chain reported one.
func (w *Wallet) Credit(tokenID, nativeAmount string) (models.Transaction, error) {
	amount, err := decimal.NewFromString(nativeAmount)
	if err != nil || !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("credit %q: amount must be positive", nativeAmount)
	}
	code, err := w.currencyCode(tokenID)
	if err != nil {
		return models.Transaction{}, err
	}
	addr, err := deriveAddress(w.plugin, w.seed, w.currentIndex())
	if err != nil {
		return models.Transaction{}, err
	}

	w.mu.Lock()
	tx := models.Transaction{
		WalletID:            w.id,
		TokenID:             tokenID,
		CurrencyCode:        code,
		NativeAmount:        amount.String(),
		NetworkFee:          "0",
		OurReceiveAddresses: []string{addr.Address},
		BlockHeight:         w.blockHeight,
		Date:                time.Now().UTC(),
	}
	tx.TxID = w.plugin.txHash([]byte(fmt.Sprintf("credit:%s:%s:%d", w.id, tx.NativeAmount, len(w.txs))))
	w.balances[tokenID] = w.balances[tokenID].Add(amount)
	w.txs = append(w.txs, tx)
	w.mu.Unlock()

	w.logger.Info("payment received", "token_id", tokenID, "amount", tx.NativeAmount)
	w.changed()
	return tx, nil
}

func (w *Wallet) currencyCode(tokenID string) (string, error) {
	if tokenID == models.NativeTokenID {
		return w.plugin.Info.CurrencyCode, nil
	}
	t, ok := w.config.AllTokens()[tokenID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	return t.CurrencyCode, nil
}

func (w *Wallet) RenameWallet(ctx context.Context, name string) error {
	w.mu.Lock()
	w.name = name
	w.mu.Unlock()
	w.changed()
	return nil
}

func (w *Wallet) SetFiatCurrencyCode(ctx context.Context, code string) error {
	w.mu.Lock()
	w.fiat = code
	w.mu.Unlock()
	w.changed()
	return nil
}

func (w *Wallet) ChangeEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	all := w.config.AllTokens()
	for _, id := range tokenIDs {
		if _, ok := all[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, id)
		}
	}
	w.mu.Lock()
	w.enabled = slices.Clone(tokenIDs)
	for _, id := range tokenIDs {
		if _, ok := w.balances[id]; !ok {
			w.balances[id] = decimal.Zero
		}
	}
	w.mu.Unlock()
	w.changed()
	return nil
}

func (w *Wallet) ChangePaused(ctx context.Context, paused bool) error {
	w.mu.Lock()
	was := w.paused
	w.paused = paused
	w.mu.Unlock()
	switch {
	case paused && !was:
		w.sync.Stop()
	case !paused && was:
		w.sync.Start()
	}
	return nil
}

func (w *Wallet) ChangeWalletSettings(ctx context.Context, settings map[string]any) error {
	w.mu.Lock()
	w.settings = maps.Clone(settings)
	w.mu.Unlock()
	return nil
}

func (w *Wallet) ResyncBlockchain(ctx context.Context) error {
	w.mu.Lock()
	w.syncRatio = 0
	w.blockHeight = 0
	w.mu.Unlock()
	w.logger.Info("resyncing blockchain")
	w.sync.Stop()
	if !w.Paused() {
		w.sync.Start()
	}
	return nil
}

func (w *Wallet) DumpData(ctx context.Context) (models.DataDump, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	balances := map[string]string{}
	for id, amount := range w.balances {
		balances[id] = amount.String()
	}
	return models.DataDump{
		WalletID:   w.id,
		WalletType: w.plugin.Info.WalletType,
		Data: map[string]any{
			"blockHeight": w.blockHeight,
			"nextIndex":   w.nextIndex,
			"nonce":       w.nonce,
			"txCount":     len(w.txs),
			"balances":    balances,
			"settings":    maps.Clone(w.settings),
		},
	}, nil
}
