package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cache"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var btcInfo = models.CurrencyInfo{
	PluginID:      "bitcoin",
	WalletType:    "wallet:bitcoin",
	CurrencyCode:  "BTC",
	Denominations: []models.Denomination{{Name: "BTC", Multiplier: "100000000"}},
}

const sessionCache = `{
  "version": 1,
  "tokens": {},
  "wallets": [
    {"id": "btc-1", "type": "wallet:bitcoin", "name": "Savings", "pluginId": "bitcoin",
     "fiatCurrencyCode": "iso:USD", "balances": {"null": "150000"}, "enabledTokenIds": []}
  ]
}`

// stubWallet implements the parts of currency.Wallet these tests touch.
type stubWallet struct {
	currency.Wallet
	id      string
	balance string
}

func (w *stubWallet) ID() string { return w.id }
func (w *stubWallet) Type() string { return btcInfo.WalletType }
func (w *stubWallet) Name() string { return "Savings" }
func (w *stubWallet) FiatCurrencyCode() string { return "iso:USD" }
func (w *stubWallet) CurrencyInfo() models.CurrencyInfo { return btcInfo }
func (w *stubWallet) EnabledTokenIDs() []string { return []string{} }
func (w *stubWallet) OtherMethods() currency.OtherMethods {
	return currency.OtherMethods{}
}

func (w *stubWallet) BalanceMap() map[string]string {
	return map[string]string{models.NativeTokenID: w.balance}
}

func (w *stubWallet) GetReceiveAddress(ctx context.Context, opts models.ReceiveAddressOptions) (models.ReceiveAddress, error) {
	return models.ReceiveAddress{PublicAddress: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"}, nil
}

func openTest(t *testing.T, contents string) (*Session, *cachefile.FileStore) {
	t.Helper()
	dir := t.TempDir()
	store := cachefile.NewFileStore(filepath.Join(dir, cachefile.FileName))
	if contents != "" {
		require.NoError(t, os.WriteFile(store.Path(), []byte(contents), 0o600))
	}
	s, err := Open(context.Background(), Options{
		Store:         store,
		CurrencyInfos: map[string]models.CurrencyInfo{"bitcoin": btcInfo},
		PollInterval:  5 * time.Millisecond,
		WaitTimeout:   2 * time.Second,
		SaveThrottle:  time.Hour,
	})
	require.NoError(t, err)
	return s, store
}

func TestOpenShowsCachedWallets(t *testing.T) {
	s, _ := openTest(t, sessionCache)
	defer s.Close(context.Background())

	ids, err := s.ActiveWalletIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"btc-1"}, ids)

	w, ok := s.Wallet("btc-1")
	require.True(t, ok)
	assert.IsType(t, &cache.CachedWallet{}, w)
	assert.Equal(t, "Savings", w.Name())
	assert.Equal(t, map[string]string{"BTC": "150000"}, w.Balances())

	balances, ok := s.CachedBalances("btc-1")
	require.True(t, ok)
	assert.Equal(t, "150000", balances[models.NativeTokenID])
}

func TestOpenStartsColdWithoutUsableCache(t *testing.T) {
	for name, contents := range map[string]string{"missing": "", "corrupt": "{not json"} {
		t.Run(name, func(t *testing.T) {
			s, _ := openTest(t, contents)
			defer s.Close(context.Background())

			ids, err := s.ActiveWalletIDs()
			require.NoError(t, err)
			assert.Empty(t, ids)
			_, ok := s.Wallet("btc-1")
			assert.False(t, ok)
			assert.NoError(t, s.WaitReady(context.Background()))
		})
	}
}

func TestRegisterWalletWakesCachedCalls(t *testing.T) {
	s, _ := openTest(t, sessionCache)
	defer s.Close(context.Background())
	cached, _ := s.Wallet("btc-1")

	done := make(chan models.ReceiveAddress, 1)
	go func() {
		addr, err := cached.GetReceiveAddress(context.Background(), models.ReceiveAddressOptions{})
		if err == nil {
			done <- addr
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.RegisterWallet(&stubWallet{id: "btc-1", balance: "200000"}))

	select {
	case addr := <-done:
		assert.Equal(t, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", addr.PublicAddress)
	case <-time.After(time.Second):
		t.Fatal("cached call did not resume")
	}

	w, _ := s.Wallet("btc-1")
	assert.IsType(t, &stubWallet{}, w)
	require.NoError(t, s.WaitReady(context.Background()))
}

func TestRegisterRejectsCachedObjects(t *testing.T) {
	s, _ := openTest(t, sessionCache)
	defer s.Close(context.Background())

	cached, _ := s.Wallet("btc-1")
	assert.Error(t, s.RegisterWallet(cached))
	cfgs, err := s.CurrencyConfigs()
	require.NoError(t, err)
	assert.Error(t, s.RegisterConfig(cfgs["bitcoin"]))
}

func TestCloseWritesCache(t *testing.T) {
	s, store := openTest(t, "")
	require.NoError(t, s.RegisterWallet(&stubWallet{id: "btc-2", balance: "5"}))
	s.WalletChanged("btc-2")

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	file, err := cachefile.Load(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, file.Wallets, 1)
	assert.Equal(t, "btc-2", file.Wallets[0].ID)
	assert.Equal(t, map[string]string{cachefile.NativeBalanceKey: "5"}, file.Wallets[0].Balances)

	_, err = s.ActiveWalletIDs()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.RegisterWallet(&stubWallet{id: "x"}), ErrClosed)
	assert.ErrorIs(t, s.SetActiveWalletIDs(nil), ErrClosed)
}

func TestCloseReleasesWaiters(t *testing.T) {
	s, _ := openTest(t, sessionCache)
	cached, _ := s.Wallet("btc-1")
	require.NoError(t, s.Close(context.Background()))

	_, err := cached.GetReceiveAddress(context.Background(), models.ReceiveAddressOptions{})
	assert.Error(t, err)
}

func TestSetActiveWalletIDs(t *testing.T) {
	s, store := openTest(t, sessionCache)
	require.NoError(t, s.SetActiveWalletIDs([]string{}))
	require.NoError(t, s.Close(context.Background()))

	file, err := cachefile.Load(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, file.Wallets)
}
