package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ptb/config"
	"github.com/blockberries/ptb/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ptb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
	assert.Equal(t, types.WaitForLocalExecution, c.Session.Mode())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
ledger:
  address: node.example:7000
session:
  gas-budget: 5000
  max-attempts: 5
  retry-wait: 250ms
  request-mode: cert
keystore:
  seeds:
    - "`+strings.Repeat("01", 32)+`"
log:
  level: debug
  format: json
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node.example:7000", c.Ledger.Address)
	assert.Equal(t, uint64(5000), c.Session.GasBudget)
	assert.Equal(t, 5, c.Session.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Session.RetryWait)
	assert.Equal(t, types.WaitForEffectsCert, c.Session.Mode())
	assert.Len(t, c.Keystore.Seeds, 1)
	assert.Equal(t, "json", c.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, c.Submit.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PTB_LEDGER_ADDRESS", "10.0.0.1:9000")
	t.Setenv("PTB_SESSION_MAX_ATTEMPTS", "7")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9000", c.Ledger.Address)
	assert.Equal(t, 7, c.Session.MaxAttempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"zero budget":  "session:\n  gas-budget: 0\n",
		"bad mode":     "session:\n  request-mode: eventually\n",
		"bad seed":     "keystore:\n  seeds: [\"abc\"]\n",
		"bad level":    "log:\n  level: loud\n",
		"bad address":  "ledger:\n  address: nowhere\n",
		"zero attempt": "session:\n  max-attempts: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
