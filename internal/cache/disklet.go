package cache

import (
	"context"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/storage"
)

// delegatingDisklet forwards every call to the matching disklet of the real
// wallet once it loads. A real wallet without that disklet falls back to a
// per-wallet in-memory one.
type delegatingDisklet struct {
	wallet   *CachedWallet
	name     string
	pick     func(currency.Wallet) storage.Disklet
	fallback *storage.MemoryDisklet
}

var _ storage.Disklet = (*delegatingDisklet)(nil)

func newDelegatingDisklet(w *CachedWallet, name string, pick func(currency.Wallet) storage.Disklet) *delegatingDisklet {
	return &delegatingDisklet{
		wallet:   w,
		name:     name,
		pick:     pick,
		fallback: storage.NewMemoryDisklet(),
	}
}

func (d *delegatingDisklet) target(ctx context.Context) (storage.Disklet, error) {
	real, err := d.wallet.realWallet(ctx)
	if err != nil {
		return nil, err
	}
	if disklet := d.pick(real); disklet != nil {
		return disklet, nil
	}
	d.wallet.logger.Warn("real wallet has no disklet, using memory", "disklet", d.name)
	return d.fallback, nil
}

func (d *delegatingDisklet) Delete(ctx context.Context, path string) error {
	t, err := d.target(ctx)
	if err != nil {
		return err
	}
	return t.Delete(ctx, path)
}

func (d *delegatingDisklet) GetData(ctx context.Context, path string) ([]byte, error) {
	t, err := d.target(ctx)
	if err != nil {
		return nil, err
	}
	return t.GetData(ctx, path)
}

func (d *delegatingDisklet) GetText(ctx context.Context, path string) (string, error) {
	t, err := d.target(ctx)
	if err != nil {
		return "", err
	}
	return t.GetText(ctx, path)
}

func (d *delegatingDisklet) List(ctx context.Context, path string) (map[string]string, error) {
	t, err := d.target(ctx)
	if err != nil {
		return nil, err
	}
	return t.List(ctx, path)
}

func (d *delegatingDisklet) SetData(ctx context.Context, path string, data []byte) error {
	t, err := d.target(ctx)
	if err != nil {
		return err
	}
	return t.SetData(ctx, path, data)
}

func (d *delegatingDisklet) SetText(ctx context.Context, path, text string) error {
	t, err := d.target(ctx)
	if err != nil {
		return err
	}
	return t.SetText(ctx, path, text)
}
