package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/storage"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var errFake = errors.New("fake engine failure")

var ethInfo = models.CurrencyInfo{
	PluginID:     "ethereum",
	WalletType:   "wallet:ethereum",
	CurrencyCode: "ETH",
	DisplayName:  "Ethereum",
	Denominations: []models.Denomination{
		{Name: "ETH", Multiplier: "1000000000000000000", Symbol: "Ξ"},
		{Name: "mETH", Multiplier: "1000000000000000"},
	},
}

var usdcToken = models.Token{
	CurrencyCode: "USDC",
	DisplayName:  "USD Coin",
	Denominations: []models.Denomination{
		{Name: "USDC", Multiplier: "1000000"},
	},
	NetworkLocation: map[string]any{"contractAddress": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
}

const usdcID = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

// fakeWallet is a real wallet double that records engine calls.
type fakeWallet struct {
	id       string
	name     string
	info     models.CurrencyInfo
	config   currency.Config
	balances map[string]string
	enabled  []string
	methods  currency.OtherMethods
	disklet  storage.Disklet
	failWith error

	mu    sync.Mutex
	calls []string
}

var _ currency.Wallet = (*fakeWallet)(nil)

func newFakeWallet(id string) *fakeWallet {
	return &fakeWallet{
		id:       id,
		name:     "Real " + id,
		info:     ethInfo,
		balances: map[string]string{models.NativeTokenID: "42", usdcID: "7"},
		enabled:  []string{usdcID},
		methods:  currency.OtherMethods{},
		disklet:  storage.NewMemoryDisklet(),
	}
}

func (f *fakeWallet) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.failWith
}

func (f *fakeWallet) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWallet) ID() string { return f.id }
func (f *fakeWallet) Type() string { return f.info.WalletType }
func (f *fakeWallet) Name() string { return f.name }
func (f *fakeWallet) FiatCurrencyCode() string { return "iso:USD" }
func (f *fakeWallet) BalanceMap() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances
}

func (f *fakeWallet) Balances() map[string]string {
	return map[string]string{"ETH": f.BalanceMap()[models.NativeTokenID]}
}

func (f *fakeWallet) setBalances(balances map[string]string) {
	f.mu.Lock()
	f.balances = balances
	f.mu.Unlock()
}
func (f *fakeWallet) EnabledTokenIDs() []string { return f.enabled }
func (f *fakeWallet) CurrencyConfig() currency.Config { return f.config }
func (f *fakeWallet) CurrencyInfo() models.CurrencyInfo { return f.info }
func (f *fakeWallet) Paused() bool { return false }
func (f *fakeWallet) SyncRatio() float64 { return 1 }
func (f *fakeWallet) Disklet() storage.Disklet { return f.disklet }
func (f *fakeWallet) LocalDisklet() storage.Disklet { return nil }
func (f *fakeWallet) OtherMethods() currency.OtherMethods {
	return f.methods
}

func (f *fakeWallet) PublicWalletInfo() models.PublicWalletInfo {
	return models.PublicWalletInfo{ID: f.id, Type: f.info.WalletType, Keys: map[string]any{"publicKey": "xpub"}}
}

func (f *fakeWallet) StakingStatus() models.StakingStatus { return models.StakingStatus{} }

func (f *fakeWallet) NativeToDenomination(nativeAmount, currencyCode string) (string, error) {
	return nativeAmount, nil
}

func (f *fakeWallet) DenominationToNative(amount, currencyCode string) (string, error) {
	return amount, nil
}

func (f *fakeWallet) GetTransactions(ctx context.Context, opts models.TransactionOptions) ([]models.Transaction, error) {
	if err := f.record("GetTransactions"); err != nil {
		return nil, err
	}
	return []models.Transaction{{TxID: "tx-1", WalletID: f.id, NativeAmount: "1"}}, nil
}

func (f *fakeWallet) StreamTransactions(ctx context.Context, opts models.StreamOptions) (currency.TransactionStream, error) {
	return nil, f.record("StreamTransactions")
}

func (f *fakeWallet) GetReceiveAddress(ctx context.Context, opts models.ReceiveAddressOptions) (models.ReceiveAddress, error) {
	if err := f.record("GetReceiveAddress"); err != nil {
		return models.ReceiveAddress{}, err
	}
	return models.ReceiveAddress{PublicAddress: "0xabc"}, nil
}

func (f *fakeWallet) GetAddresses(ctx context.Context, tokenID string) ([]models.AddressInfo, error) {
	return nil, f.record("GetAddresses")
}

func (f *fakeWallet) GetMaxSpendable(ctx context.Context, spend models.SpendInfo) (string, error) {
	return "40", f.record("GetMaxSpendable")
}

func (f *fakeWallet) MakeSpend(ctx context.Context, spend models.SpendInfo) (*models.Transaction, error) {
	if err := f.record("MakeSpend"); err != nil {
		return nil, err
	}
	return &models.Transaction{TxID: "unsigned", WalletID: f.id}, nil
}

func (f *fakeWallet) SignTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	return tx, f.record("SignTx")
}

func (f *fakeWallet) BroadcastTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	return tx, f.record("BroadcastTx")
}

func (f *fakeWallet) SaveTx(ctx context.Context, tx *models.Transaction) error {
	return f.record("SaveTx")
}

func (f *fakeWallet) SaveTxMetadata(ctx context.Context, opts models.SaveTxMetadataOptions) error {
	return f.record("SaveTxMetadata")
}

func (f *fakeWallet) SignMessage(ctx context.Context, message string, opts models.SignMessageOptions) (string, error) {
	return "sig:" + message, f.record("SignMessage")
}

func (f *fakeWallet) ParseURI(ctx context.Context, uri string) (models.ParsedURI, error) {
	return models.ParsedURI{PublicAddress: uri}, f.record("ParseURI")
}

func (f *fakeWallet) EncodeURI(ctx context.Context, opts models.EncodeURIOptions) (string, error) {
	return "ethereum:" + opts.PublicAddress, f.record("EncodeURI")
}

func (f *fakeWallet) AccelerateTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	return nil, f.record("AccelerateTx")
}

func (f *fakeWallet) ResyncBlockchain(ctx context.Context) error {
	return f.record("ResyncBlockchain")
}

func (f *fakeWallet) DumpData(ctx context.Context) (models.DataDump, error) {
	return models.DataDump{WalletID: f.id}, f.record("DumpData")
}

func (f *fakeWallet) RenameWallet(ctx context.Context, name string) error {
	return f.record("RenameWallet")
}

func (f *fakeWallet) SetFiatCurrencyCode(ctx context.Context, code string) error {
	return f.record("SetFiatCurrencyCode")
}

func (f *fakeWallet) ChangeEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	return f.record("ChangeEnabledTokenIDs")
}

func (f *fakeWallet) ChangePaused(ctx context.Context, paused bool) error {
	return f.record("ChangePaused")
}

func (f *fakeWallet) LockReceiveAddress(ctx context.Context, addr models.ReceiveAddress) error {
	return f.record("LockReceiveAddress")
}

func (f *fakeWallet) ChangeWalletSettings(ctx context.Context, settings map[string]any) error {
	return f.record("ChangeWalletSettings")
}

// fakeConfig is a real config double.
type fakeConfig struct {
	info   models.CurrencyInfo
	tokens map[string]models.Token

	mu     sync.Mutex
	custom map[string]models.Token
}

var _ currency.Config = (*fakeConfig)(nil)

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		info: ethInfo,
		tokens: map[string]models.Token{
			usdcID: usdcToken,
			"dai":  {CurrencyCode: "DAI", Denominations: []models.Denomination{{Name: "DAI", Multiplier: "1"}}},
		},
		custom: map[string]models.Token{},
	}
}

func (f *fakeConfig) PluginID() string { return f.info.PluginID }
func (f *fakeConfig) CurrencyInfo() models.CurrencyInfo { return f.info }
func (f *fakeConfig) AllTokens() map[string]models.Token { return f.tokens }
func (f *fakeConfig) BuiltinTokens() map[string]models.Token { return f.tokens }
func (f *fakeConfig) AlwaysEnabledTokenIDs() []string { return nil }
func (f *fakeConfig) UserSettings() map[string]any { return nil }
func (f *fakeConfig) OtherMethods() currency.OtherMethods { return nil }

func (f *fakeConfig) CustomTokens() map[string]models.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.custom
}

func (f *fakeConfig) GetTokenID(ctx context.Context, token models.Token) (string, error) {
	return TokenIDFor(token), nil
}

func (f *fakeConfig) AddCustomToken(ctx context.Context, token models.Token) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := TokenIDFor(token)
	f.custom[id] = token
	return id, nil
}

func (f *fakeConfig) ChangeCustomToken(ctx context.Context, tokenID string, token models.Token) error {
	return nil
}

func (f *fakeConfig) RemoveCustomToken(ctx context.Context, tokenID string) error { return nil }

func (f *fakeConfig) ChangeAlwaysEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	return nil
}

func (f *fakeConfig) ChangeUserSettings(ctx context.Context, settings map[string]any) error {
	return nil
}

func (f *fakeConfig) ImportKey(ctx context.Context, userInput string) (map[string]any, error) {
	return map[string]any{"key": userInput}, nil
}

// registry is the table GetRealWallet and GetRealConfig read from.
type registry struct {
	mu      sync.Mutex
	wallets map[string]currency.Wallet
	configs map[string]currency.Config
}

func newRegistry() *registry {
	return &registry{wallets: map[string]currency.Wallet{}, configs: map[string]currency.Config{}}
}

func (r *registry) setWallet(w currency.Wallet) {
	r.mu.Lock()
	r.wallets[w.ID()] = w
	r.mu.Unlock()
}

func (r *registry) setConfig(c currency.Config) {
	r.mu.Lock()
	r.configs[c.PluginID()] = c
	r.mu.Unlock()
}

func (r *registry) wallet(id string) currency.Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wallets[id]
}

func (r *registry) config(pluginID string) currency.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[pluginID]
}

// fakeAccount serves a fixed wallet table to the saver.
type fakeAccount struct {
	mu      sync.Mutex
	ids     []string
	wallets map[string]currency.Wallet
	configs map[string]currency.Config
	err     error
}

func (a *fakeAccount) ActiveWalletIDs() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...), a.err
}

func (a *fakeAccount) CurrencyWallets() (map[string]currency.Wallet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wallets, a.err
}

func (a *fakeAccount) CurrencyConfigs() (map[string]currency.Config, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configs, a.err
}

// memStore is a cachefile.Writer that keeps every write.
type memStore struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (m *memStore) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return nil
}

func (m *memStore) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil, errFake
	}
	return m.writes[len(m.writes)-1], nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *memStore) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
