package cache

import (
	"context"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// Engine operations need a running engine. Each waits for the real wallet
// and forwards to it unchanged; failures of the real call reach the caller
// as-is.

func (w *CachedWallet) GetTransactions(ctx context.Context, opts models.TransactionOptions) ([]models.Transaction, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.GetTransactions(ctx, opts)
}

func (w *CachedWallet) StreamTransactions(ctx context.Context, opts models.StreamOptions) (currency.TransactionStream, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.StreamTransactions(ctx, opts)
}

func (w *CachedWallet) GetReceiveAddress(ctx context.Context, opts models.ReceiveAddressOptions) (models.ReceiveAddress, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return models.ReceiveAddress{}, err
	}
	return real.GetReceiveAddress(ctx, opts)
}

func (w *CachedWallet) GetAddresses(ctx context.Context, tokenID string) ([]models.AddressInfo, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.GetAddresses(ctx, tokenID)
}

func (w *CachedWallet) GetMaxSpendable(ctx context.Context, spend models.SpendInfo) (string, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return "", err
	}
	return real.GetMaxSpendable(ctx, spend)
}

func (w *CachedWallet) MakeSpend(ctx context.Context, spend models.SpendInfo) (*models.Transaction, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.MakeSpend(ctx, spend)
}

func (w *CachedWallet) SignTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.SignTx(ctx, tx)
}

func (w *CachedWallet) BroadcastTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.BroadcastTx(ctx, tx)
}

func (w *CachedWallet) SaveTx(ctx context.Context, tx *models.Transaction) error {
	real, err := w.realWallet(ctx)
	if err != nil {
		return err
	}
	return real.SaveTx(ctx, tx)
}

func (w *CachedWallet) SaveTxMetadata(ctx context.Context, opts models.SaveTxMetadataOptions) error {
	real, err := w.realWallet(ctx)
	if err != nil {
		return err
	}
	return real.SaveTxMetadata(ctx, opts)
}

func (w *CachedWallet) SignMessage(ctx context.Context, message string, opts models.SignMessageOptions) (string, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return "", err
	}
	return real.SignMessage(ctx, message, opts)
}

func (w *CachedWallet) ParseURI(ctx context.Context, uri string) (models.ParsedURI, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return models.ParsedURI{}, err
	}
	return real.ParseURI(ctx, uri)
}

func (w *CachedWallet) EncodeURI(ctx context.Context, opts models.EncodeURIOptions) (string, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return "", err
	}
	return real.EncodeURI(ctx, opts)
}

func (w *CachedWallet) AccelerateTx(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	return real.AccelerateTx(ctx, tx)
}

func (w *CachedWallet) ResyncBlockchain(ctx context.Context) error {
	real, err := w.realWallet(ctx)
	if err != nil {
		return err
	}
	return real.ResyncBlockchain(ctx)
}

func (w *CachedWallet) DumpData(ctx context.Context) (models.DataDump, error) {
	real, err := w.realWallet(ctx)
	if err != nil {
		return models.DataDump{}, err
	}
	return real.DumpData(ctx)
}
