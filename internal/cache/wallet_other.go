package cache

import (
	"context"
	"fmt"
	"maps"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
)

// OtherMethods returns the other methods known from the plugin config and the
// previous session. Each stub waits for the real wallet and forwards the call
// by name. With no known names, the real wallet's methods are returned if it
// is already loaded, and an empty set otherwise.
func (w *CachedWallet) OtherMethods() currency.OtherMethods {
	if len(w.otherMethods) == 0 {
		if real, ok := w.real.TryGet(); ok {
			return maps.Clone(real.OtherMethods())
		}
		return currency.OtherMethods{}
	}
	out := make(currency.OtherMethods, len(w.otherMethods))
	for name, fn := range w.otherMethods {
		out[name] = fn
	}
	return out
}

func (w *CachedWallet) buildOtherMethods(names []string) currency.OtherMethods {
	methods := make(currency.OtherMethods, len(names)+len(w.record.OtherMethodNames))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := methods[name]; ok {
			return
		}
		methods[name] = w.otherMethodStub(name)
	}
	for _, name := range names {
		add(name)
	}
	for _, name := range w.record.OtherMethodNames {
		add(name)
	}
	return methods
}

func (w *CachedWallet) otherMethodStub(name string) currency.OtherMethod {
	return func(ctx context.Context, args ...any) (any, error) {
		real, err := w.realWallet(ctx)
		if err != nil {
			return nil, err
		}
		fn, ok := real.OtherMethods()[name]
		if !ok || fn == nil {
			return nil, fmt.Errorf("%w: %s on wallet %s", ErrMethodNotAvailable, name, w.record.ID)
		}
		return fn(ctx, args...)
	}
}
