package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

func newTestWallet(t *testing.T, pluginID string, opts WalletOptions) *Wallet {
	t.Helper()
	p, err := LookupPlugin(pluginID)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mnemonic == "" {
		opts.Mnemonic = testMnemonic
	}
	w, err := NewWallet(NewConfig(p), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Close)
	return w
}

func otherAddress(t *testing.T, pluginID string) string {
	t.Helper()
	p, _ := LookupPlugin(pluginID)
	addr, err := deriveAddress(p, testSeed2(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	return addr.Address
}

func TestNewWallet_RejectsBadMnemonic(t *testing.T) {
	p, _ := LookupPlugin(PluginBitcoin)
	if _, err := NewWallet(NewConfig(p), WalletOptions{Mnemonic: "not a mnemonic"}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestWallet_DefaultsAndIdentity(t *testing.T) {
	w := newTestWallet(t, PluginEthereum, WalletOptions{Name: "Main"})
	if w.ID() == "" {
		t.Error("wallet id should default to a uuid")
	}
	if w.Type() != "wallet:ethereum" || w.Name() != "Main" || w.FiatCurrencyCode() != "iso:USD" {
		t.Errorf("unexpected identity: %s %s %s", w.Type(), w.Name(), w.FiatCurrencyCode())
	}
	if got := w.BalanceMap()[models.NativeTokenID]; got != "0" {
		t.Errorf("native balance = %s, want 0", got)
	}
	if w.SyncRatio() != 0 {
		t.Errorf("sync ratio before start = %v", w.SyncRatio())
	}
}

func TestWallet_SyncAndResync(t *testing.T) {
	w := newTestWallet(t, PluginBitcoin, WalletOptions{SyncInterval: 5 * time.Millisecond})
	w.Start()

	deadline := time.Now().Add(time.Second)
	for w.BlockHeight() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.BlockHeight() < 3 || w.SyncRatio() != 1 {
		t.Fatalf("wallet did not sync: height=%d ratio=%v", w.BlockHeight(), w.SyncRatio())
	}

	if err := w.ChangePaused(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := w.ResyncBlockchain(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if w.BlockHeight() != 0 || w.SyncRatio() != 0 {
		t.Errorf("paused wallet kept syncing after resync: height=%d", w.BlockHeight())
	}
}

func TestWallet_ChangesNotify(t *testing.T) {
	var changes atomic.Int32
	w := newTestWallet(t, PluginEthereum, WalletOptions{OnChange: func(string) { changes.Add(1) }})
	ctx := context.Background()

	if err := w.RenameWallet(ctx, "Renamed"); err != nil {
		t.Fatal(err)
	}
	if err := w.SetFiatCurrencyCode(ctx, "iso:EUR"); err != nil {
		t.Fatal(err)
	}
	usdc := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	if err := w.ChangeEnabledTokenIDs(ctx, []string{usdc}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Credit(usdc, "2500000"); err != nil {
		t.Fatal(err)
	}
	if got := changes.Load(); got != 4 {
		t.Errorf("changes = %d, want 4", got)
	}
	if got := w.Balances()["USDC"]; got != "2500000" {
		t.Errorf("USDC balance = %s", got)
	}
	if err := w.ChangeEnabledTokenIDs(ctx, []string{"nope"}); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("err = %v, want ErrUnknownToken", err)
	}
}

func TestWallet_ReceiveAddresses(t *testing.T) {
	w := newTestWallet(t, PluginBitcoin, WalletOptions{})
	ctx := context.Background()

	first, err := w.GetReceiveAddress(ctx, models.ReceiveAddressOptions{})
	if err != nil {
		t.Fatal(err)
	}
	again, _ := w.GetReceiveAddress(ctx, models.ReceiveAddressOptions{})
	if first.PublicAddress != again.PublicAddress {
		t.Error("unused address should be returned again")
	}
	if err := w.LockReceiveAddress(ctx, first); err != nil {
		t.Fatal(err)
	}
	next, _ := w.GetReceiveAddress(ctx, models.ReceiveAddressOptions{})
	if next.PublicAddress == first.PublicAddress {
		t.Error("locked address should not be returned")
	}
	zero := uint32(0)
	forced, _ := w.GetReceiveAddress(ctx, models.ReceiveAddressOptions{ForceIndex: &zero})
	if forced.PublicAddress != first.PublicAddress {
		t.Error("ForceIndex 0 should return the first address")
	}

	addrs, err := w.GetAddresses(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 2 {
		t.Errorf("addresses = %d, want 2", len(addrs))
	}
	if err := w.LockReceiveAddress(ctx, first); err == nil {
		t.Error("locking an old address should fail")
	}
}

func TestWallet_SpendFlow(t *testing.T) {
	w := newTestWallet(t, PluginBitcoin, WalletOptions{})
	ctx := context.Background()
	if _, err := w.Credit("", "100000"); err != nil {
		t.Fatal(err)
	}

	max, err := w.GetMaxSpendable(ctx, models.SpendInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if max != "90000" {
		t.Errorf("max spendable = %s, want 90000", max)
	}

	spend := models.SpendInfo{SpendTargets: []models.SpendTarget{
		{PublicAddress: otherAddress(t, PluginBitcoin), NativeAmount: "50000"},
	}}
	unsigned, err := w.MakeSpend(ctx, spend)
	if err != nil {
		t.Fatal(err)
	}
	if unsigned.NativeAmount != "-50000" || unsigned.NetworkFee != "10000" || unsigned.Signed {
		t.Fatalf("unexpected spend: %+v", unsigned)
	}

	signed, err := w.SignTx(ctx, unsigned)
	if err != nil {
		t.Fatal(err)
	}
	if !signed.Signed || signed.TxID == "" || signed.SignedTx == "" {
		t.Fatalf("transaction should be signed: %+v", signed)
	}
	if unsigned.Signed {
		t.Error("SignTx should not modify its input")
	}

	sent, err := w.BroadcastTx(ctx, signed)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SaveTx(ctx, sent); err != nil {
		t.Fatal(err)
	}
	if err := w.SaveTx(ctx, sent); err != nil {
		t.Fatal(err)
	}
	if got := w.BalanceMap()[""]; got != "40000" {
		t.Errorf("balance after spend = %s, want 40000", got)
	}

	txs, err := w.GetTransactions(ctx, models.TransactionOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].TxID != sent.TxID {
		t.Errorf("history should list the spend first, got %d txs", len(txs))
	}

	if err := w.SaveTxMetadata(ctx, models.SaveTxMetadataOptions{TxID: sent.TxID, Metadata: models.TxMetadata{Name: "Coffee"}}); err != nil {
		t.Fatal(err)
	}
	found, _ := w.GetTransactions(ctx, models.TransactionOptions{SearchQuery: "coffee"})
	if len(found) != 1 {
		t.Errorf("search found %d txs, want 1", len(found))
	}
}

func TestWallet_SpendValidation(t *testing.T) {
	w := newTestWallet(t, PluginEthereum, WalletOptions{})
	ctx := context.Background()
	to := otherAddress(t, PluginEthereum)

	if _, err := w.MakeSpend(ctx, models.SpendInfo{}); !errors.Is(err, ErrInvalidSpend) {
		t.Errorf("no targets: err = %v", err)
	}
	bad := models.SpendInfo{SpendTargets: []models.SpendTarget{{PublicAddress: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", NativeAmount: "1"}}}
	if _, err := w.MakeSpend(ctx, bad); !errors.Is(err, ErrInvalidSpend) {
		t.Errorf("foreign address: err = %v", err)
	}
	frac := models.SpendInfo{SpendTargets: []models.SpendTarget{{PublicAddress: to, NativeAmount: "1.5"}}}
	if _, err := w.MakeSpend(ctx, frac); !errors.Is(err, ErrInvalidSpend) {
		t.Errorf("fractional amount: err = %v", err)
	}
	broke := models.SpendInfo{SpendTargets: []models.SpendTarget{{PublicAddress: to, NativeAmount: "1"}}}
	if _, err := w.MakeSpend(ctx, broke); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("empty wallet: err = %v", err)
	}
	if _, err := w.BroadcastTx(ctx, &models.Transaction{}); !errors.Is(err, ErrNotSigned) {
		t.Errorf("unsigned broadcast: err = %v", err)
	}
}

func TestWallet_NonceIncrement(t *testing.T) {
	w := newTestWallet(t, PluginTron, WalletOptions{})
	ctx := context.Background()
	if _, err := w.Credit("", "100000000"); err != nil {
		t.Fatal(err)
	}
	spend := models.SpendInfo{SpendTargets: []models.SpendTarget{{PublicAddress: otherAddress(t, PluginTron), NativeAmount: "100"}}}

	var nonces []uint64
	for i := 0; i < 3; i++ {
		tx, err := w.MakeSpend(ctx, spend)
		if err != nil {
			t.Fatal(err)
		}
		nonces = append(nonces, tx.OtherParams["nonce"].(uint64))
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] != nonces[i-1]+1 {
			t.Errorf("nonce should increment: nonces[%d]=%d, nonces[%d]=%d", i-1, nonces[i-1], i, nonces[i])
		}
	}
}

func TestWallet_StreamTransactions(t *testing.T) {
	w := newTestWallet(t, PluginBitcoin, WalletOptions{})
	for i := 0; i < 5; i++ {
		if _, err := w.Credit("", "1000"); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()
	stream, err := w.StreamTransactions(ctx, models.StreamOptions{BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var sizes []int
	for {
		batch, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(batch))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
}

func TestWallet_URIs(t *testing.T) {
	w := newTestWallet(t, PluginBitcoin, WalletOptions{})
	ctx := context.Background()
	addr := otherAddress(t, PluginBitcoin)

	uri, err := w.EncodeURI(ctx, models.EncodeURIOptions{PublicAddress: addr, NativeAmount: "50000000", Label: "Coffee"})
	if err != nil {
		t.Fatal(err)
	}
	want := "bitcoin:" + addr + "?amount=0.5&label=Coffee"
	if uri != want {
		t.Errorf("uri = %s, want %s", uri, want)
	}

	parsed, err := w.ParseURI(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.PublicAddress != addr || parsed.NativeAmount != "50000000" || parsed.Label != "Coffee" {
		t.Errorf("parsed = %+v", parsed)
	}

	plain, _ := w.EncodeURI(ctx, models.EncodeURIOptions{PublicAddress: addr})
	if plain != addr {
		t.Errorf("plain uri = %s", plain)
	}
	if _, err := w.ParseURI(ctx, "ethereum:"+addr); err == nil {
		t.Error("foreign scheme should fail")
	}
}

func TestWallet_SignMessage(t *testing.T) {
	w := newTestWallet(t, PluginEthereum, WalletOptions{})
	sig1, err := w.SignMessage(context.Background(), "hello", models.SignMessageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	sig2, _ := w.SignMessage(context.Background(), "hello", models.SignMessageOptions{})
	if sig1 == "" || sig1 != sig2 {
		t.Error("signatures should be deterministic (RFC 6979)")
	}
}

func TestWallet_OtherMethods(t *testing.T) {
	w := newTestWallet(t, PluginEthereum, WalletOptions{})
	methods := w.OtherMethods()

	path, err := methods["getDerivationPath"](context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if path != "m/44'/60'/0'/0/3" {
		t.Errorf("path = %v", path)
	}
	height, err := methods["getBlockHeight"](context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if height != uint64(0) {
		t.Errorf("height = %v", height)
	}
}

func TestWallet_AccelerateTx(t *testing.T) {
	btc := newTestWallet(t, PluginBitcoin, WalletOptions{})
	tx := &models.Transaction{TxID: "abc", NetworkFee: "10000", Signed: true}
	bumped, err := btc.AccelerateTx(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if bumped == nil || bumped.NetworkFee != "20000" || bumped.Signed || bumped.OtherParams["replacesTxId"] != "abc" {
		t.Errorf("bumped = %+v", bumped)
	}

	eth := newTestWallet(t, PluginEthereum, WalletOptions{})
	if got, err := eth.AccelerateTx(context.Background(), tx); got != nil || err != nil {
		t.Errorf("ethereum accelerate = %v, %v", got, err)
	}
}
