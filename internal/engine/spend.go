package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/shopspring/decimal"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var (
	ErrInsufficientFunds = errors.New("engine: insufficient funds")
	ErrNotSigned         = errors.New("engine: transaction is not signed")
	ErrTxNotFound        = errors.New("engine: transaction not found")
	ErrInvalidSpend      = errors.New("engine: invalid spend")
)

// BroadcastFunc sends a signed transaction to the network.
type BroadcastFunc func(ctx context.Context, tx *models.Transaction) error

// sender broadcasts signed transactions with retry. A transaction id is only
// ever sent once; repeated calls return the first result.
type sender struct {
	broadcast BroadcastFunc
	retries   int
	backoff   time.Duration
	logger    *slog.Logger

	mu   sync.Mutex
	sent map[string]*models.Transaction
}

func newSender(fn BroadcastFunc, retries int, backoff time.Duration, logger *slog.Logger) *sender {
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &sender{
		broadcast: fn,
		retries:   retries,
		backoff:   backoff,
		logger:    logger,
		sent:      map[string]*models.Transaction{},
	}
}

func (s *sender) send(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sent[tx.TxID]; ok {
		s.logger.Info("duplicate broadcast, returning existing tx", "tx_id", tx.TxID)
		return existing, nil
	}
	if err := s.sendWithRetry(ctx, tx); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	s.sent[tx.TxID] = tx
	return tx, nil
}

func (s *sender) sendWithRetry(ctx context.Context, tx *models.Transaction) error {
	if s.broadcast == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		err := s.broadcast(ctx, tx)
		if err == nil {
			s.logger.Info("transaction broadcast successful", "tx_id", tx.TxID, "attempt", attempt)
			return nil
		}
		lastErr = err
		s.logger.Warn("broadcast attempt failed",
			"attempt", attempt,
			"max_retries", s.retries,
			"error", err,
		)
		if attempt == s.retries {
			break
		}

		// Exponential backoff
		select {
		case <-time.After(time.Duration(attempt*attempt) * s.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("all %d broadcast attempts failed: %w", s.retries, lastErr)
}

func (w *Wallet) fee() decimal.Decimal {
	return decimal.RequireFromString(w.plugin.NetworkFee)
}

// GetMaxSpendable returns the largest amount of spend.TokenID that can be
// sent after fees.
func (w *Wallet) GetMaxSpendable(ctx context.Context, spend models.SpendInfo) (string, error) {
	fee := w.fee()
	w.mu.RLock()
	defer w.mu.RUnlock()
	native := w.balances[models.NativeTokenID]
	if spend.TokenID == models.NativeTokenID {
		if native.LessThanOrEqual(fee) {
			return "0", nil
		}
		return native.Sub(fee).String(), nil
	}
	if native.LessThan(fee) {
		return "0", nil
	}
	return w.balances[spend.TokenID].String(), nil
}

// MakeSpend builds an unsigned transaction. Amounts are negative from the
// wallet's point of view.
func (w *Wallet) MakeSpend(ctx context.Context, spend models.SpendInfo) (*models.Transaction, error) {
	if len(spend.SpendTargets) == 0 {
		return nil, fmt.Errorf("%w: no targets", ErrInvalidSpend)
	}
	code, err := w.currencyCode(spend.TokenID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, t := range spend.SpendTargets {
		if err := w.plugin.ValidateAddress(t.PublicAddress); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpend, err)
		}
		amount, err := decimal.NewFromString(t.NativeAmount)
		if err != nil || !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
			return nil, fmt.Errorf("%w: amount %q", ErrInvalidSpend, t.NativeAmount)
		}
		total = total.Add(amount)
	}
	fee := w.fee()
	if spend.NetworkFee != "" {
		if fee, err = decimal.NewFromString(spend.NetworkFee); err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("%w: fee %q", ErrInvalidSpend, spend.NetworkFee)
		}
	}
	from, err := deriveAddress(w.plugin, w.seed, 0)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	native := w.balances[models.NativeTokenID]
	if spend.TokenID == models.NativeTokenID {
		if native.LessThan(total.Add(fee)) {
			w.mu.Unlock()
			return nil, ErrInsufficientFunds
		}
	} else if native.LessThan(fee) || w.balances[spend.TokenID].LessThan(total) {
		w.mu.Unlock()
		return nil, ErrInsufficientFunds
	}
	nonce := w.nonce
	w.nonce++
	height := w.blockHeight
	w.mu.Unlock()

	tx := &models.Transaction{
		WalletID:     w.id,
		TokenID:      spend.TokenID,
		CurrencyCode: code,
		NativeAmount: total.Neg().String(),
		NetworkFee:   fee.String(),
		BlockHeight:  height,
		Date:         time.Now().UTC(),
		Metadata:     spend.Metadata,
		OtherParams: map[string]any{
			"from":         from.Address,
			"nonce":        nonce,
			"spendTargets": spend.SpendTargets,
		},
	}
	w.logger.Info("building transaction",
		"token_id", tx.TokenID,
		"amount", tx.NativeAmount,
		"fee", tx.NetworkFee,
		"nonce", nonce,
	)
	return tx, nil
}

// encodeForSigning serializes the fields a signature commits to.
func encodeForSigning(tx *models.Transaction) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%v|%v", tx.WalletID, tx.TokenID, tx.NativeAmount, tx.NetworkFee,
		tx.OtherParams["from"], tx.OtherParams["nonce"])
	if targets, ok := tx.OtherParams["spendTargets"].([]models.SpendTarget); ok {
		for _, t := range targets {
			fmt.Fprintf(&b, "|%s:%s", t.PublicAddress, t.NativeAmount)
		}
	}
	if id, ok := tx.OtherParams["replacesTxId"].(string); ok {
		fmt.Fprintf(&b, "|rbf:%s", id)
	}
	return []byte(b.String())
}

// SignTx signs with the key of the wallet's first address. The transaction
// id is the chain's hash of the signed payload.
func (w *Wallet) SignTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	key, err := deriveKey(w.seed, w.plugin.CoinType, 0)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	payload := encodeForSigning(tx)
	digest := sha256.Sum256(payload)
	sig := ecdsa.Sign(key, digest[:])

	signed := *tx
	signed.OtherParams = maps.Clone(tx.OtherParams)
	if signed.OtherParams == nil {
		signed.OtherParams = map[string]any{}
	}
	signed.OtherParams["signature"] = hex.EncodeToString(sig.Serialize())
	signed.TxID = w.plugin.txHash(payload)
	signed.SignedTx = hex.EncodeToString(payload)
	signed.Signed = true
	return &signed, nil
}

// BroadcastTx sends a signed transaction.
func (w *Wallet) BroadcastTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx == nil || !tx.Signed {
		return nil, ErrNotSigned
	}
	return w.sender.send(ctx, tx)
}

// SaveTx adds a transaction to the history. The first save of an outgoing
// transaction debits the balances.
func (w *Wallet) SaveTx(ctx context.Context, tx *models.Transaction) error {
	if tx == nil || tx.TxID == "" {
		return fmt.Errorf("save tx: %w", ErrNotSigned)
	}
	amount, err := decimal.NewFromString(tx.NativeAmount)
	if err != nil {
		return fmt.Errorf("save tx: amount %q: %w", tx.NativeAmount, err)
	}
	fee, err := decimal.NewFromString(tx.NetworkFee)
	if err != nil {
		return fmt.Errorf("save tx: fee %q: %w", tx.NetworkFee, err)
	}

	w.mu.Lock()
	for i := range w.txs {
		if w.txs[i].TxID == tx.TxID {
			w.txs[i] = *tx
			w.mu.Unlock()
			return nil
		}
	}
	w.txs = append(w.txs, *tx)
	if amount.IsNegative() {
		w.balances[tx.TokenID] = w.balances[tx.TokenID].Add(amount)
		w.balances[models.NativeTokenID] = w.balances[models.NativeTokenID].Sub(fee)
	}
	w.mu.Unlock()

	w.changed()
	return nil
}

func (w *Wallet) SaveTxMetadata(ctx context.Context, opts models.SaveTxMetadataOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.txs {
		if w.txs[i].TxID == opts.TxID && w.txs[i].TokenID == opts.TokenID {
			md := opts.Metadata
			w.txs[i].Metadata = &md
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTxNotFound, opts.TxID)
}

// SignMessage signs a message with the key of the first address and returns
// the hex DER signature.
func (w *Wallet) SignMessage(ctx context.Context, message string, opts models.SignMessageOptions) (string, error) {
	key, err := deriveKey(w.seed, w.plugin.CoinType, 0)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig := ecdsa.Sign(key, messageDigest(w.plugin, message))
	return hex.EncodeToString(sig.Serialize()), nil
}

func messageDigest(p *Plugin, message string) []byte {
	if p.Info.PluginID == PluginBitcoin {
		return doubleSHA256([]byte(message))
	}
	return keccak256([]byte(message))
}

// AccelerateTx returns an unsigned replacement of a pending Bitcoin
// transaction paying twice the fee, or nil when the transaction cannot be
// accelerated.
func (w *Wallet) AccelerateTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if w.plugin.Info.PluginID != PluginBitcoin || tx == nil || tx.TxID == "" {
		return nil, nil
	}
	fee, err := decimal.NewFromString(tx.NetworkFee)
	if err != nil {
		return nil, fmt.Errorf("accelerate: fee %q: %w", tx.NetworkFee, err)
	}
	replacement := *tx
	replacement.OtherParams = maps.Clone(tx.OtherParams)
	if replacement.OtherParams == nil {
		replacement.OtherParams = map[string]any{}
	}
	replacement.OtherParams["replacesTxId"] = tx.TxID
	delete(replacement.OtherParams, "signature")
	replacement.NetworkFee = fee.Mul(decimal.NewFromInt(2)).String()
	replacement.TxID = ""
	replacement.SignedTx = ""
	replacement.Signed = false
	return &replacement, nil
}
