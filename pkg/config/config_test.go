package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkswap/sparkbot/internal/domain"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const fullYAML = `
markets: ["btc/ltc"]
placement_margin: 0.04
fill_margin: "0.02"
max_order_size: 1.5
min_order_size: 0.001
interval: 10s
call_timeout: 3
log_level: debug
status_addr: 127.0.0.1:8080
broker:
  rpc_address: broker.local
  rpc_cert_path: /etc/broker.cert
  rpc_user: alice
  rpc_pass: hunter2
  rate_limit: 5
exchange:
  api_key: k
  api_secret: c2VjcmV0
  passphrase: p
  products:
    ETH/BTC:
      product_id: ETH-BTC
`

func TestLoad_YAML(t *testing.T) {
	c, err := Load(writeFile(t, "sparkbot.yaml", fullYAML))
	require.NoError(t, err)

	assert.Equal(t, []domain.Market{{Base: "BTC", Counter: "LTC"}}, c.Markets)
	assert.True(t, c.PlacementMargin.Equal(decimal.RequireFromString("0.04")))
	assert.True(t, c.FillMargin.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, c.MaxOrderSize.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, c.MinOrderSize.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, 10*time.Second, c.Interval)
	assert.Equal(t, 3*time.Second, c.CallTimeout)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "127.0.0.1:8080", c.StatusAddr)

	assert.Equal(t, "broker.local:27492", c.Broker.RPCAddress)
	assert.Equal(t, "/etc/broker.cert", c.Broker.CertPath)
	assert.Equal(t, "alice", c.Broker.User)
	assert.Equal(t, 5.0, c.Broker.RateLimit)

	assert.Equal(t, DefaultExchangeURL, c.Exchange.APIURL)
	assert.Equal(t, 3.0, c.Exchange.RateLimit)
	p, ok := c.Product(domain.MustParseMarket("BTC/LTC"))
	require.True(t, ok)
	assert.Equal(t, ProductConfig{ProductID: "LTC-BTC", Inverted: true}, p)
	p, ok = c.Product(domain.MustParseMarket("ETH/BTC"))
	require.True(t, ok)
	assert.False(t, p.Inverted)
}

func TestLoad_JSONDefaults(t *testing.T) {
	path := writeFile(t, "sparkbot.json", `{
		"markets": ["BTC/LTC"],
		"max_order_size": "0.5",
		"dry_run": true,
		"broker": {"disable_auth": true, "rpc_address": "10.0.0.2:9999"}
	}`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.True(t, c.PlacementMargin.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, c.FillMargin.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, c.MinOrderSize.IsZero())
	assert.Equal(t, 30*time.Second, c.Interval)
	assert.Equal(t, 5*time.Second, c.CallTimeout)
	assert.True(t, c.DryRun)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "logs/sparkbot.log", c.LogFile)
	assert.Empty(t, c.StatusAddr)
	assert.Equal(t, "10.0.0.2:9999", c.Broker.RPCAddress)
	assert.True(t, c.Broker.DisableAuth)
	assert.Equal(t, "sparkswap", c.Broker.User)
	assert.Equal(t, "sparkswap", c.Broker.Pass)
}

func TestLoad_EnvFillsGaps(t *testing.T) {
	t.Setenv("SPARKBOT_MARKETS", "BTC/LTC")
	t.Setenv("SPARKBOT_MAX_ORDER_SIZE", "2")
	t.Setenv("SPARKBOT_INTERVAL", "1m")
	t.Setenv("SPARKBOT_DRY_RUN", "true")
	t.Setenv("SPARKBOT_GDAX_API_KEY", "from-env")

	path := writeFile(t, "sparkbot.yaml", `
markets: ["BTC/LTC", "ETH/BTC"]
exchange:
  products:
    ETH/BTC: {product_id: ETH-BTC}
`)
	c, err := Load(path)
	require.NoError(t, err)
	// file wins over env
	assert.Len(t, c.Markets, 2)
	assert.True(t, c.MaxOrderSize.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, time.Minute, c.Interval)
	assert.Equal(t, "from-env", c.Exchange.APIKey)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/LTC"}, c.MarketNames())
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no markets", `max_order_size: 1`, "at least one market"},
		{"malformed market", "markets: [BTCLTC]\nmax_order_size: 1", "markets"},
		{"no product", "markets: [ETH/BTC]\nmax_order_size: 1\ndry_run: true", "no exchange product"},
		{"bad decimal", "markets: [BTC/LTC]\nmax_order_size: lots", "not a decimal"},
		{"max zero", "markets: [BTC/LTC]\ndry_run: true", "max_order_size"},
		{"min negative", "markets: [BTC/LTC]\nmax_order_size: 1\nmin_order_size: -1\ndry_run: true", "must not be negative"},
		{"min above max", "markets: [BTC/LTC]\nmax_order_size: 1\nmin_order_size: 1\ndry_run: true", "less than max_order_size"},
		{"bad interval", "markets: [BTC/LTC]\nmax_order_size: 1\ninterval: soon\ndry_run: true", "not a duration"},
		{"zero timeout", "markets: [BTC/LTC]\nmax_order_size: 1\ncall_timeout: 0\ndry_run: true", "call_timeout"},
		{"margin too large", "markets: [BTC/LTC]\nmax_order_size: 1\nplacement_margin: 1\ndry_run: true", "placement_margin"},
		{"missing hedge credentials", "markets: [BTC/LTC]\nmax_order_size: 1", "exchange credentials missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "%v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedEnvBoolean(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"dry run yes", "SPARKBOT_DRY_RUN", "yes", "dry_run"},
		{"dry run typo", "SPARKBOT_DRY_RUN", "ture", "dry_run"},
		{"disable auth", "SPARKBOT_DISABLE_AUTH", "on", "broker.disable_auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPARKBOT_MARKETS", "BTC/LTC")
			t.Setenv("SPARKBOT_MAX_ORDER_SIZE", "1")
			t.Setenv("SPARKBOT_GDAX_API_KEY", "k")
			t.Setenv("SPARKBOT_GDAX_API_SECRET", "c2VjcmV0")
			t.Setenv("SPARKBOT_GDAX_API_PASSPHRASE", "p")
			t.Setenv(tt.key, tt.value)

			c, err := Load("")
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "%v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "not a boolean")
		})
	}
}

func TestLoad_FileBooleanWinsOverEnv(t *testing.T) {
	t.Setenv("SPARKBOT_DRY_RUN", "garbage")
	c, err := Load(writeFile(t, "c.yaml", "markets: [BTC/LTC]\nmax_order_size: 1\ndry_run: true"))
	require.NoError(t, err)
	assert.True(t, c.DryRun)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = Load(writeFile(t, "c.toml", "markets = []"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "localhost:27492", withDefaultPort("localhost", DefaultBrokerPort))
	assert.Equal(t, "localhost:1234", withDefaultPort("localhost:1234", DefaultBrokerPort))
	assert.Equal(t, "[::1]:27492", withDefaultPort("::1", DefaultBrokerPort))
	assert.Equal(t, "", withDefaultPort("", DefaultBrokerPort))
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".sparkswap/certs/x.cert"), ExpandTilde("~/.sparkswap/certs/x.cert"))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, "/abs/path", ExpandTilde("/abs/path"))
	assert.Equal(t, "~other/x", ExpandTilde("~other/x"))
}
