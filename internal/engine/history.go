package engine

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

const defaultBatchSize = 10

var errStreamClosed = errors.New("engine: transaction stream closed")

// GetTransactions returns matching transactions, newest first.
func (w *Wallet) GetTransactions(ctx context.Context, opts models.TransactionOptions) ([]models.Transaction, error) {
	txs := w.filterTransactions(opts.TokenID, opts)
	if opts.Limit > 0 && len(txs) > opts.Limit {
		txs = txs[:opts.Limit]
	}
	return txs, nil
}

// StreamTransactions pages through the history of one token, newest first.
func (w *Wallet) StreamTransactions(ctx context.Context, opts models.StreamOptions) (currency.TransactionStream, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	return &txStream{
		txs:  w.filterTransactions(opts.TokenID, models.TransactionOptions{}),
		size: size,
	}, nil
}

func (w *Wallet) filterTransactions(tokenID string, opts models.TransactionOptions) []models.Transaction {
	query := strings.ToLower(opts.SearchQuery)
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.Transaction, 0, len(w.txs))
	for _, tx := range w.txs {
		if tx.TokenID != tokenID {
			continue
		}
		if opts.StartDate != nil && tx.Date.Before(*opts.StartDate) {
			continue
		}
		if opts.EndDate != nil && !tx.Date.Before(*opts.EndDate) {
			continue
		}
		if query != "" && !matchesQuery(tx, query) {
			continue
		}
		out = append(out, tx)
	}
	slices.Reverse(out)
	return out
}

func matchesQuery(tx models.Transaction, query string) bool {
	if strings.Contains(strings.ToLower(tx.TxID), query) {
		return true
	}
	if tx.Metadata == nil {
		return false
	}
	for _, field := range []string{tx.Metadata.Name, tx.Metadata.Category, tx.Metadata.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// txStream serves a snapshot of the history taken when the stream opened.
type txStream struct {
	mu     sync.Mutex
	txs    []models.Transaction
	size   int
	pos    int
	closed bool
}

func (s *txStream) Next(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStreamClosed
	}
	if s.pos >= len(s.txs) {
		return nil, io.EOF
	}
	end := min(s.pos+s.size, len(s.txs))
	batch := slices.Clone(s.txs[s.pos:end])
	s.pos = end
	return batch, nil
}

func (s *txStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
