package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
endpoints:
  ws_urls: ["wss://rpc.example.com"]
  rpc_urls: ["https://rpc.example.com"]
chain:
  launchpad_program: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
  metadata_program: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
strategy:
  take_profit_pct: 30
  stop_loss_pct: -20
  timeout: 1h
  buy_amount_sol: 0.05
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://rpc.example.com"}, cfg.Endpoints.WSURLs)
	assert.Equal(t, 30.0, cfg.Strategy.TakeProfitPct)
	assert.Equal(t, time.Hour, cfg.Strategy.Timeout)

	// Defaults fill in everything not specified.
	assert.Equal(t, "confirmed", cfg.Chain.Commitment)
	assert.Equal(t, 4096, cfg.Detector.DedupCacheSize)
	assert.Equal(t, 10*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, []string{"take_profit", "stop_loss", "timeout"}, cfg.Strategy.ExitPriority)
	assert.Equal(t, 5*time.Second, cfg.Strategy.MonitorInterval)
	assert.Contains(t, cfg.Chain.CreationMarkers, "Program log: Instruction: Create")
}

func TestLoadMissingEndpointsFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
chain:
  launchpad_program: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
  metadata_program: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
strategy:
  take_profit_pct: 30
  stop_loss_pct: -20
  timeout: 1h
  buy_amount_sol: 0.05
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_urls")
	assert.Contains(t, err.Error(), "rpc_urls")
}

func TestLoadRejectsBadProgramID(t *testing.T) {
	_, err := Load(writeConfig(t, `
endpoints:
  ws_urls: ["wss://rpc.example.com"]
  rpc_urls: ["https://rpc.example.com"]
chain:
  launchpad_program: "not-a-pubkey"
  metadata_program: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
strategy:
  take_profit_pct: 30
  stop_loss_pct: -20
  timeout: 1h
  buy_amount_sol: 0.05
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launchpad_program")
}

func TestLoadRejectsPositiveStopLoss(t *testing.T) {
	_, err := Load(writeConfig(t, `
endpoints:
  ws_urls: ["wss://rpc.example.com"]
  rpc_urls: ["https://rpc.example.com"]
chain:
  launchpad_program: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
  metadata_program: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
strategy:
  take_profit_pct: 30
  stop_loss_pct: 20
  timeout: 1h
  buy_amount_sol: 0.05
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_loss_pct")
}

func TestLoadRejectsUnknownExitPriority(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+`
  exit_priority: ["take_profit", "trailing"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit_priority")
}

func TestLoadRejectsBadScheme(t *testing.T) {
	_, err := Load(writeConfig(t, `
endpoints:
  ws_urls: ["https://rpc.example.com"]
  rpc_urls: ["https://rpc.example.com"]
chain:
  launchpad_program: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
  metadata_program: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
strategy:
  take_profit_pct: 30
  stop_loss_pct: -20
  timeout: 1h
  buy_amount_sol: 0.05
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}
