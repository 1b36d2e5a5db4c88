package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/engine"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/session"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

const demoMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var demo = cli.Command{
	Name:  "demo",
	Usage: "log in against the in-memory engine, showing cached wallets until engines load",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "mnemonic",
			Usage: "BIP-39 mnemonic every demo wallet is derived from",
			Value: demoMnemonic,
		},
		&cli.DurationFlag{
			Name:  "engine-delay",
			Usage: "simulated time for a wallet engine to load",
			Value: 2 * time.Second,
		},
	},
	Action: demoAction,
}

func demoAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := slog.Default()
	bg := context.Background()

	otherMethods := cfg.OtherMethods
	for _, id := range engine.PluginIDs() {
		otherMethods[id] = append(otherMethods[id], "getDerivationPath", "getBlockHeight")
	}

	start := time.Now()
	s, err := session.Open(bg, session.Options{
		Store:            cachefile.NewFileStore(cfg.CachePath()),
		CurrencyInfos:    engine.CurrencyInfos(),
		OtherMethodNames: otherMethods,
		Paused:           cfg.PauseWallets,
		PollInterval:     cfg.PollInterval,
		WaitTimeout:      cfg.WaitTimeout,
		SaveThrottle:     cfg.SaveThrottle,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("login after %s\n", time.Since(start).Round(time.Millisecond))
	if err := printWallets(s); err != nil {
		return err
	}

	plan, err := engineLoadPlan(s)
	if err != nil {
		return err
	}

	// A cached call made now blocks until its engine registers.
	if len(plan) > 0 && plan[0].cached != nil {
		go func(w currency.Wallet) {
			addr, err := w.GetReceiveAddress(bg, models.ReceiveAddressOptions{})
			if err != nil {
				logger.Warn("cached receive address failed", "error", err)
				return
			}
			fmt.Printf("receive address of %s after %s: %s\n",
				w.ID(), time.Since(start).Round(time.Millisecond), addr.PublicAddress)
		}(plan[0].cached)
	}

	mnemonic := ctx.String("mnemonic")
	delay := ctx.Duration("engine-delay")
	configs := map[string]*engine.Config{}
	for _, id := range engine.PluginIDs() {
		p, _ := engine.LookupPlugin(id)
		configs[id] = engine.NewConfig(p)
		if err := s.RegisterConfig(configs[id]); err != nil {
			return err
		}
	}

	results := make([]*engine.Wallet, len(plan))
	defer func() {
		for _, w := range results {
			if w != nil {
				w.Close()
			}
		}
	}()
	g, gctx := errgroup.WithContext(bg)
	for i, item := range plan {
		i, item := i, item
		g.Go(func() error {
			select {
			case <-time.After(delay):
			case <-gctx.Done():
				return gctx.Err()
			}
			w, err := startWallet(s, configs[item.pluginID], item, mnemonic, logger)
			if err != nil {
				return fmt.Errorf("wallet %s: %w", item.id, err)
			}
			results[i] = w
			return s.RegisterWallet(w)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.WaitReady(bg); err != nil {
		return err
	}
	fmt.Printf("engines ready after %s\n", time.Since(start).Round(time.Millisecond))
	if err := printWallets(s); err != nil {
		return err
	}

	if err := s.Close(bg); err != nil {
		return err
	}
	fmt.Printf("cache written to %s\n", cfg.CachePath())
	return nil
}

type loadItem struct {
	id       string
	pluginID string
	cached   currency.Wallet
}

// engineLoadPlan lists the wallets to start: every cached wallet, or one new
// wallet per plugin on a cold start.
func engineLoadPlan(s *session.Session) ([]loadItem, error) {
	ids, err := s.ActiveWalletIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		var plan []loadItem
		for _, pluginID := range engine.PluginIDs() {
			plan = append(plan, loadItem{pluginID: pluginID})
		}
		return plan, nil
	}
	plan := make([]loadItem, 0, len(ids))
	for _, id := range ids {
		w, ok := s.Wallet(id)
		if !ok {
			continue
		}
		plan = append(plan, loadItem{id: id, pluginID: w.CurrencyInfo().PluginID, cached: w})
	}
	return plan, nil
}

// startWallet builds an engine wallet. A wallet known from the cache gets its
// cached state back, as a synced engine would report it; a new wallet
// receives a first payment.
func startWallet(s *session.Session, cfg *engine.Config, item loadItem, mnemonic string, logger *slog.Logger) (*engine.Wallet, error) {
	opts := engine.WalletOptions{
		ID:       item.id,
		Mnemonic: mnemonic,
		OnChange: s.WalletChanged,
		Logger:   logger,
	}
	if item.cached != nil {
		opts.Name = item.cached.Name()
		opts.FiatCurrencyCode = item.cached.FiatCurrencyCode()
	} else {
		opts.Name = "My " + cfg.CurrencyInfo().DisplayName
	}
	w, err := engine.NewWallet(cfg, opts)
	if err != nil {
		return nil, err
	}

	if item.cached != nil {
		known := cfg.AllTokens()
		var enabled []string
		for _, tokenID := range item.cached.EnabledTokenIDs() {
			if _, ok := known[tokenID]; ok {
				enabled = append(enabled, tokenID)
			}
		}
		if err := w.ChangeEnabledTokenIDs(context.Background(), enabled); err != nil {
			return nil, err
		}
		balances, _ := s.CachedBalances(item.id)
		for tokenID, amount := range balances {
			if amount == "0" {
				continue
			}
			if _, err := w.Credit(tokenID, amount); err != nil {
				logger.Warn("cached balance not restored", "wallet_id", item.id, "token_id", tokenID, "error", err)
			}
		}
	} else {
		first := cfg.CurrencyInfo().Denominations[0].Multiplier
		if _, err := w.Credit(models.NativeTokenID, first); err != nil {
			return nil, err
		}
	}
	w.Start()
	return w, nil
}

func printWallets(s *session.Session) error {
	ids, err := s.ActiveWalletIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("  (no wallets)")
		return nil
	}
	for _, id := range ids {
		w, ok := s.Wallet(id)
		if !ok {
			continue
		}
		balances := w.Balances()
		codes := make([]string, 0, len(balances))
		for code := range balances {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Printf("  %-36s %-20s sync=%.0f%%", id, w.Name(), w.SyncRatio()*100)
		for _, code := range codes {
			shown, err := w.NativeToDenomination(balances[code], code)
			if err != nil {
				shown = balances[code]
			}
			fmt.Printf("  %s %s", shown, code)
		}
		fmt.Println()
	}
	return nil
}
