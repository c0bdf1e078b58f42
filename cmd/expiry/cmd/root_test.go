package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/expiry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "debug", "json"))
	slog.Debug("probe", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"probe"`)

	buf.Reset()
	require.NoError(t, setupLogging(&buf, "warn", "text"))
	slog.Info("hidden")
	assert.Empty(t, buf.String())

	assert.Error(t, setupLogging(&buf, "loud", "text"))
	assert.Error(t, setupLogging(&buf, "info", "xml"))

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expiry.yaml")

	out, err := execute(t, "config", "init", "-o", path, "--env", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Symbols, cfg.Symbols)

	out, err = execute(t, "config", "validate", "-c", path, "--env", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "NIFTY")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  risk_per_trade: 3\n"), 0o600))

	_, err := execute(t, "config", "validate", "-c", path, "--env", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSize(t *testing.T) {
	out, err := execute(t, "size", "nifty", "--premium", "20", "--env", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Symbol:   NIFTY")
	assert.Contains(t, out, "Stop:     14.00")
	assert.Contains(t, out, "Target:   30.00")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "expiry version "+version+"\n", out)
}
