package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/engine"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var inspect = cli.Command{
	Name:      "inspect",
	Usage:     "print the wallets and balances stored in a cache file",
	ArgsUsage: "[cache file]",
	Action:    inspectAction,
}

func inspectAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	path := cfg.CachePath()
	if ctx.Args().Present() {
		path = ctx.Args().First()
	}

	file, err := cachefile.Load(context.Background(), cachefile.NewFileStore(path))
	if errors.Is(err, cachefile.ErrNoCache) {
		return cli.Exit(fmt.Sprintf("no cache at %s", path), 2)
	}
	if err != nil {
		return err
	}

	infos := engine.CurrencyInfos()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WALLET\tNAME\tPLUGIN\tBALANCE\tTOKENS")
	for _, rec := range file.Wallets {
		name := "-"
		if rec.Name != nil {
			name = *rec.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			rec.ID, name, rec.PluginID,
			displayBalances(rec, infos[rec.PluginID], file.Tokens[rec.PluginID]),
			len(rec.EnabledTokenIDs),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d wallets, cache version %d, %s\n", len(file.Wallets), file.Version, path)
	return nil
}

// displayBalances renders balances in each currency's main denomination.
// Unknown currencies are shown in native units.
func displayBalances(rec cachefile.CachedWallet, info models.CurrencyInfo, tokens map[string]models.Token) string {
	keys := make([]string, 0, len(rec.Balances))
	for k := range rec.Balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, key := range keys {
		code, denoms := key, []models.Denomination(nil)
		if tokenID := cachefile.TokenIDFromBalanceKey(key); tokenID == models.NativeTokenID {
			code, denoms = info.CurrencyCode, info.Denominations
		} else if t, ok := tokens[tokenID]; ok {
			code, denoms = t.CurrencyCode, t.Denominations
		}
		amount := decimal.RequireFromString(rec.Balances[key])
		if len(denoms) > 0 {
			if m, err := decimal.NewFromString(denoms[0].Multiplier); err == nil && !m.IsZero() {
				amount = amount.Div(m)
			}
		}
		if code == "" {
			code = "?"
		}
		if out != "" {
			out += ", "
		}
		out += amount.String() + " " + code
	}
	if out == "" {
		return "-"
	}
	return out
}
