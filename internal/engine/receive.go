package engine

import (
	"context"
	"fmt"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

func (w *Wallet) currentIndex() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nextIndex
}

// GetReceiveAddress returns the first unused address, or the address at
// ForceIndex when set.
func (w *Wallet) GetReceiveAddress(ctx context.Context, opts models.ReceiveAddressOptions) (models.ReceiveAddress, error) {
	index := w.currentIndex()
	if opts.ForceIndex != nil {
		index = *opts.ForceIndex
	}
	addr, err := deriveAddress(w.plugin, w.seed, index)
	if err != nil {
		return models.ReceiveAddress{}, err
	}
	w.mu.RLock()
	balance := w.balances[opts.TokenID]
	w.mu.RUnlock()
	return models.ReceiveAddress{
		PublicAddress: addr.Address,
		NativeAmount:  balance.String(),
	}, nil
}

// GetAddresses lists every address issued so far, oldest first.
func (w *Wallet) GetAddresses(ctx context.Context, tokenID string) ([]models.AddressInfo, error) {
	last := w.currentIndex()
	out := make([]models.AddressInfo, 0, last+1)
	for i := uint32(0); i <= last; i++ {
		addr, err := deriveAddress(w.plugin, w.seed, i)
		if err != nil {
			return nil, err
		}
		out = append(out, models.AddressInfo{AddressType: "publicAddress", PublicAddress: addr.Address})
	}
	return out, nil
}

// LockReceiveAddress marks the current receive address as used, so the next
// GetReceiveAddress returns a fresh one.
func (w *Wallet) LockReceiveAddress(ctx context.Context, addr models.ReceiveAddress) error {
	current, err := deriveAddress(w.plugin, w.seed, w.currentIndex())
	if err != nil {
		return err
	}
	if addr.PublicAddress != current.Address {
		return fmt.Errorf("lock receive address: %s is not the current address", addr.PublicAddress)
	}
	w.mu.Lock()
	w.nextIndex++
	w.mu.Unlock()
	return nil
}
