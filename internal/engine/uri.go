package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// ParseURI accepts a bare address or a payment URI such as
// "bitcoin:1Boat...?amount=0.5&label=Coffee". Amounts are in the main
// denomination and come back in native units.
func (w *Wallet) ParseURI(ctx context.Context, uri string) (models.ParsedURI, error) {
	uri = strings.TrimSpace(uri)
	if err := w.plugin.ValidateAddress(uri); err == nil {
		return models.ParsedURI{PublicAddress: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return models.ParsedURI{}, fmt.Errorf("parse uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, w.plugin.URIScheme) {
		return models.ParsedURI{}, fmt.Errorf("parse uri: unsupported scheme %q", u.Scheme)
	}
	addr := u.Opaque
	if addr == "" {
		addr = u.Host + strings.TrimPrefix(u.Path, "/")
	}
	if err := w.plugin.ValidateAddress(addr); err != nil {
		return models.ParsedURI{}, fmt.Errorf("parse uri: %w", err)
	}

	q := u.Query()
	parsed := models.ParsedURI{
		PublicAddress: addr,
		Label:         q.Get("label"),
		Message:       q.Get("message"),
	}
	if amount := q.Get("amount"); amount != "" {
		native, err := w.DenominationToNative(amount, w.plugin.Info.CurrencyCode)
		if err != nil {
			return models.ParsedURI{}, fmt.Errorf("parse uri: %w", err)
		}
		parsed.NativeAmount = native
	}
	return parsed, nil
}

// EncodeURI builds a payment URI. With only an address it returns the
// address itself.
func (w *Wallet) EncodeURI(ctx context.Context, opts models.EncodeURIOptions) (string, error) {
	if err := w.plugin.ValidateAddress(opts.PublicAddress); err != nil {
		return "", fmt.Errorf("encode uri: %w", err)
	}
	q := url.Values{}
	if opts.NativeAmount != "" {
		native, err := decimal.NewFromString(opts.NativeAmount)
		if err != nil {
			return "", fmt.Errorf("encode uri: amount %q: %w", opts.NativeAmount, err)
		}
		amount, err := w.NativeToDenomination(native.String(), w.plugin.Info.CurrencyCode)
		if err != nil {
			return "", fmt.Errorf("encode uri: %w", err)
		}
		q.Set("amount", amount)
	}
	if opts.Label != "" {
		q.Set("label", opts.Label)
	}
	if opts.Message != "" {
		q.Set("message", opts.Message)
	}
	if len(q) == 0 {
		return opts.PublicAddress, nil
	}
	return w.plugin.URIScheme + ":" + opts.PublicAddress + "?" + q.Encode(), nil
}
