package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var testCache = fmt.Sprintf(`{
  "version": 1,
  "tokens": {
    "ethereum": {
      %[1]q: {
        "currencyCode": "USDC",
        "displayName": "USD Coin",
        "denominations": [{"name": "USDC", "multiplier": "1000000"}],
        "networkLocation": {"contractAddress": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
      }
    }
  },
  "wallets": [
    {
      "id": "w1",
      "type": "wallet:ethereum",
      "name": "Main",
      "pluginId": "ethereum",
      "fiatCurrencyCode": "iso:USD",
      "balances": {"null": "100", %[1]q: "5"},
      "enabledTokenIds": [%[1]q],
      "otherMethodNames": ["getStakingInfo"]
    },
    {
      "id": "w2",
      "type": "wallet:monero",
      "pluginId": "monero",
      "fiatCurrencyCode": "iso:EUR",
      "balances": {"null": "3"},
      "enabledTokenIds": []
    },
    {
      "id": "w3",
      "type": "wallet:ethereum",
      "pluginId": "ethereum",
      "fiatCurrencyCode": "iso:EUR",
      "balances": {},
      "enabledTokenIds": []
    }
  ]
}`, usdcID)

var testInfos = map[string]models.CurrencyInfo{"ethereum": ethInfo}

func loadTest(t *testing.T, reg *registry, timeout time.Duration) *LoadResult {
	t.Helper()
	res, err := Load([]byte(testCache), testInfos, LoadOptions{
		GetRealWallet:    reg.wallet,
		GetRealConfig:    reg.config,
		OtherMethodNames: map[string][]string{"ethereum": {"getDerivationPath"}},
		PollInterval:     5 * time.Millisecond,
		WaitTimeout:      timeout,
	})
	require.NoError(t, err)
	t.Cleanup(res.Cleanup)
	return res
}
